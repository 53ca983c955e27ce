package cmdq

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestSessionDo(t *testing.T) {
	inv := &replyInvoker{reply: []byte{0, 0, 0, 0, 4, 1, 0x70, 0x08, 0x08}}
	s := NewSession(inv, DefaultChannel, zaptest.NewLogger(t))
	r, err := s.Do(context.Background(), 4, func(q *Queue) error {
		return q.Read(0x7008, 1)
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.N != 9 || len(r.Data) != 4 || r.Data[3] != 0x08 {
		t.Errorf("Do() = %+v", r)
	}

	// The reply is detached from the queue buffer.
	inv.reply = []byte{0, 0, 0, 0, 4, 0, 0, 0, 0}
	if _, err := s.Do(context.Background(), 4, func(q *Queue) error {
		return q.Read(0x7008, 1)
	}); err != nil {
		t.Fatal(err)
	}
	if r.Data[3] != 0x08 {
		t.Error("Reply.Data was overwritten by a later transaction")
	}
}

func TestSessionBuildErrorSendsNothing(t *testing.T) {
	inv := &replyInvoker{reply: []byte{0, 0, 0, 0, 0}}
	s := NewSession(inv, DefaultChannel, nil)
	boom := errors.New("boom")
	_, err := s.Do(context.Background(), 4, func(q *Queue) error {
		if err := q.WriteReg(0x7000, 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Do() error = %v, want %v", err, boom)
	}
	if inv.calls != 0 {
		t.Errorf("invoker called %d times", inv.calls)
	}
}

func TestSessionPropagatesErrors(t *testing.T) {
	inv := &replyInvoker{reply: []byte{1, 0, 0, 0, 0}}
	s := NewSession(inv, DefaultChannel, zaptest.NewLogger(t))
	r, err := s.Do(context.Background(), 4, func(q *Queue) error {
		return q.WriteReg(0x7000, 1)
	})
	if !errors.Is(err, ErrDeviceFailure) {
		t.Errorf("Do() error = %v, want ErrDeviceFailure", err)
	}
	if r.N != 5 || r.Data != nil {
		t.Errorf("Do() = %+v on failure", r)
	}
}

// serialInvoker fails the test if two requests are in flight at once and
// checks that every request decodes to a single uninterrupted run.
type serialInvoker struct {
	t      *testing.T
	mu     sync.Mutex
	active bool
}

func (s *serialInvoker) Invoke(ctx context.Context, channel, sub uint8, req, reply []byte) (int, error) {
	s.mu.Lock()
	if s.active {
		s.t.Error("concurrent Invoke")
	}
	s.active = true
	s.mu.Unlock()

	r, err := Decode(req)
	if err != nil {
		s.t.Errorf("Decode: %v", err)
	} else {
		ops := r.Ops()
		for _, op := range ops {
			if byte(op.Addr) != r.Code || op.Data[0] != r.Code {
				s.t.Errorf("request %d contains foreign op %v", r.Code, op)
			}
		}
		if len(ops) != 20 {
			s.t.Errorf("request %d has %d ops, want 20", r.Code, len(ops))
		}
	}

	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	return copy(reply, []byte{0, 0, 0, 0, 0}), nil
}

func TestSessionExclusive(t *testing.T) {
	s := NewSession(&serialInvoker{t: t}, DefaultChannel, nil)
	var wg sync.WaitGroup
	for g := 1; g <= 8; g++ {
		wg.Add(1)
		go func(code uint8) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := s.Do(context.Background(), code, func(q *Queue) error {
					for j := 0; j < 20; j++ {
						if err := q.WriteReg(uint16(code), code); err != nil {
							return err
						}
					}
					return nil
				})
				if err != nil {
					t.Error(err)
				}
			}
		}(uint8(g))
	}
	wg.Wait()
}
