package cmdq

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reply is a detached copy of a successful reply.
type Reply struct {
	N    int    // bytes received, header included
	Data []byte // data_count bytes of payload
}

// Session serializes build-then-execute cycles on one Queue.
type Session struct {
	mu      sync.Mutex
	q       *Queue
	inv     Invoker
	channel uint8
	log     *zap.Logger
}

// NewSession returns a session executing on channel through inv.
// log may be nil.
func NewSession(inv Invoker, channel uint8, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		q:       New(channel),
		inv:     inv,
		channel: channel,
		log:     log.With(zap.String("component", "cmdq")),
	}
}

// Do runs one transaction: it resets the queue with code, lets build append
// operations and executes the result. The session lock is held for the whole
// cycle and released only after the reply payload has been copied out.
//
// If build fails nothing is sent. Every executed transaction is counted in
// the metrics registered by RegisterMetrics, labelled by Outcome.
func (s *Session) Do(ctx context.Context, code uint8, build func(q *Queue) error) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.q.Init(code)
	if err := build(s.q); err != nil {
		return Reply{}, err
	}

	start := time.Now()
	n, err := s.q.Execute(ctx, s.inv)
	elapsed := time.Since(start)
	// An empty queue never reaches the bridge.
	if err != nil || s.q.Groups() > 0 {
		recordTransaction(s.channel, err, elapsed)
	}
	if ce := s.log.Check(zap.DebugLevel, "command queue executed"); ce != nil {
		ce.Write(
			zap.String("txn", uuid.NewString()),
			zap.Uint8("code", code),
			zap.Int("groups", s.q.Groups()),
			zap.Int("request_bytes", s.q.Len()),
			zap.Int("reply_bytes", n),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
	}
	if err != nil {
		return Reply{N: n}, err
	}
	return Reply{N: n, Data: bytes.Clone(s.q.Data())}, nil
}
