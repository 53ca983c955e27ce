package icc

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"periph.io/x/conn/v3"
)

// Conn is a cmdq.Invoker over a periph.io connection.
//
// The request frame is sent in one transaction, then the reply header and
// the reply body are read in two more. This works for an i2c.Dev as well as
// for a half-duplex spi.Conn. Calls are serialized so the three
// transactions of one round trip never interleave with another.
type Conn struct {
	mu  sync.Mutex
	c   conn.Conn
	log *zap.Logger
	buf []byte
}

// NewConn returns an invoker using c. log may be nil.
func NewConn(c conn.Conn, log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	return &Conn{
		c:   c,
		log: log.With(zap.String("transport", "conn"), zap.String("conn", c.String())),
		buf: make([]byte, 0, MaxFrame),
	}
}

// Invoke implements cmdq.Invoker.
func (t *Conn) Invoke(ctx context.Context, channel, sub uint8, req, reply []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	frame, err := appendRequest(t.buf[:0], channel, sub, req)
	if err != nil {
		return 0, err
	}
	if err := t.c.Tx(frame, nil); err != nil {
		return 0, fmt.Errorf("icc: write request: %w", err)
	}

	var hdr [ReplyFrameHeaderSize]byte
	if err := t.c.Tx(nil, hdr[:]); err != nil {
		return 0, fmt.Errorf("icc: read reply header: %w", err)
	}
	n, err := replyLen(hdr[:], len(reply))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := t.c.Tx(nil, reply[:n]); err != nil {
			return 0, fmt.Errorf("icc: read reply: %w", err)
		}
	}
	t.log.Debug("icc round trip",
		zap.Uint8("channel", channel),
		zap.Int("request_bytes", len(req)),
		zap.Int("reply_bytes", n),
	)
	return n, nil
}

func (t *Conn) String() string {
	return "icc.Conn{" + t.c.String() + "}"
}
