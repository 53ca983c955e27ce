package icc

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Stream is a cmdq.Invoker over a byte stream such as a UART or a socket.
type Stream struct {
	mu  sync.Mutex
	rw  io.ReadWriter
	log *zap.Logger
	buf []byte
}

// NewStream returns an invoker framing requests onto rw. log may be nil.
func NewStream(rw io.ReadWriter, log *zap.Logger) *Stream {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stream{
		rw:  rw,
		log: log.With(zap.String("transport", "stream")),
		buf: make([]byte, 0, MaxFrame),
	}
}

// Invoke implements cmdq.Invoker.
func (s *Stream) Invoke(ctx context.Context, channel, sub uint8, req, reply []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := appendRequest(s.buf[:0], channel, sub, req)
	if err != nil {
		return 0, err
	}
	if _, err := s.rw.Write(frame); err != nil {
		return 0, fmt.Errorf("icc: write request: %w", err)
	}

	r := timeoutReader{s.rw}
	var hdr [ReplyFrameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, fmt.Errorf("icc: read reply header: %w", err)
	}
	n, err := replyLen(hdr[:], len(reply))
	if err != nil {
		return 0, err
	}
	if _, err := io.ReadFull(r, reply[:n]); err != nil {
		return 0, fmt.Errorf("icc: read reply: %w", err)
	}
	s.log.Debug("icc round trip",
		zap.Uint8("channel", channel),
		zap.Int("request_bytes", len(req)),
		zap.Int("reply_bytes", n),
	)
	return n, nil
}
