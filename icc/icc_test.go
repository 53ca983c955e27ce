package icc

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/conntest"

	"periph.io/x/devices/v3/mn864xx/cmdq"
	"periph.io/x/devices/v3/mn864xx/cmdq/cmdqtest"
)

func TestConnInvoke(t *testing.T) {
	p := &conntest.Playback{
		Ops: []conntest.IO{
			{W: []byte{0x10, 0x00, 0x04, 0x00, 0x01, 0x02, 0x03, 0x04}},
			{R: []byte{0x06, 0x00}},
			{R: []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x08}},
		},
		DontPanic: true,
	}
	c := NewConn(p, zaptest.NewLogger(t))
	reply := make([]byte, 32)
	n, err := c.Invoke(context.Background(), 0x10, 0, []byte{1, 2, 3, 4}, reply)
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 || !bytes.Equal(reply[:n], []byte{0, 0, 0, 0, 1, 8}) {
		t.Errorf("Invoke() = %d, % x", n, reply[:n])
	}
	if err := p.Close(); err != nil {
		t.Error(err)
	}
}

func TestConnEmptyReply(t *testing.T) {
	p := &conntest.Playback{
		Ops: []conntest.IO{
			{W: []byte{0x10, 0x00, 0x01, 0x00, 0xaa}},
			{R: []byte{0x00, 0x00}},
		},
		DontPanic: true,
	}
	n, err := NewConn(p, nil).Invoke(context.Background(), 0x10, 0, []byte{0xaa}, make([]byte, 8))
	if err != nil || n != 0 {
		t.Errorf("Invoke() = %d, %v, want 0, nil", n, err)
	}
	if err := p.Close(); err != nil {
		t.Error(err)
	}
}

func TestConnReplyTooLarge(t *testing.T) {
	p := &conntest.Playback{
		Ops: []conntest.IO{
			{W: []byte{0x10, 0x00, 0x01, 0x00, 0xaa}},
			{R: []byte{0x09, 0x00}},
		},
		DontPanic: true,
	}
	_, err := NewConn(p, nil).Invoke(context.Background(), 0x10, 0, []byte{0xaa}, make([]byte, 8))
	if !errors.Is(err, ErrReplyTooLarge) {
		t.Errorf("Invoke() error = %v, want ErrReplyTooLarge", err)
	}
}

func TestConnTxError(t *testing.T) {
	p := &conntest.Playback{DontPanic: true}
	if _, err := NewConn(p, nil).Invoke(context.Background(), 0x10, 0, []byte{1}, make([]byte, 8)); err == nil {
		t.Error("Invoke() should fail when the bus rejects the transfer")
	}
}

func TestConnCanceled(t *testing.T) {
	p := &conntest.Playback{
		Ops:       []conntest.IO{{W: []byte{0x10, 0x00, 0x01, 0x00, 0x01}}},
		DontPanic: true,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewConn(p, nil).Invoke(ctx, 0x10, 0, []byte{1}, make([]byte, 8)); !errors.Is(err, context.Canceled) {
		t.Errorf("Invoke() error = %v, want context.Canceled", err)
	}
	if err := p.Close(); err == nil {
		t.Error("bus was used after cancellation")
	}
}

// busBridge is a half-duplex bus with an emulated bridge behind it. A
// request written while the previous reply is still unread is rejected.
type busBridge struct {
	mu      sync.Mutex
	dev     *cmdqtest.Device
	pending []byte
}

func (b *busBridge) String() string      { return "bridge" }
func (b *busBridge) Duplex() conn.Duplex { return conn.Half }

func (b *busBridge) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(w) > 0 {
		if len(b.pending) > 0 {
			return errors.New("request while a reply is pending")
		}
		if len(w) < RequestFrameHeaderSize {
			return errors.New("short request frame")
		}
		reply := make([]byte, cmdq.ReplyHeaderSize+cmdq.MaxReplyData)
		n, err := b.dev.Invoke(context.Background(), w[0], w[1], w[RequestFrameHeaderSize:], reply)
		if err != nil {
			return err
		}
		b.pending = binary.LittleEndian.AppendUint16(nil, uint16(n))
		b.pending = append(b.pending, reply[:n]...)
	}
	if len(r) > 0 {
		if len(b.pending) < len(r) {
			return errors.New("read past the reply")
		}
		copy(r, b.pending)
		b.pending = b.pending[len(r):]
	}
	return nil
}

func TestConnConcurrentInvoke(t *testing.T) {
	bus := &busBridge{dev: &cmdqtest.Device{}}
	c := NewConn(bus, nil)

	var wg sync.WaitGroup
	for g := 1; g <= 4; g++ {
		wg.Add(1)
		go func(g byte) {
			defer wg.Done()
			q := cmdq.New(cmdq.DefaultChannel)
			addr := 0x7000 + uint16(g)
			for i := 0; i < 200; i++ {
				q.Init(4)
				if err := q.WriteReg(addr, g); err != nil {
					t.Error(err)
					return
				}
				if err := q.Read(addr, 1); err != nil {
					t.Error(err)
					return
				}
				if _, err := q.Execute(context.Background(), c); err != nil {
					t.Error(err)
					return
				}
				if want := []byte{1, 0x70, g, g}; !bytes.Equal(q.Data(), want) {
					t.Errorf("goroutine %d: reply data = % x, want % x", g, q.Data(), want)
					return
				}
			}
		}(byte(g))
	}
	wg.Wait()
	if got := bus.dev.Calls(); got != 800 {
		t.Errorf("%d requests reached the bridge, want 800", got)
	}
}

func TestRequestTooLarge(t *testing.T) {
	if _, err := appendRequest(nil, 0x10, 0, make([]byte, MaxFrame)); !errors.Is(err, ErrRequestTooLarge) {
		t.Errorf("appendRequest() error = %v, want ErrRequestTooLarge", err)
	}
}

// fakeLink records writes and replays a canned reply.
type fakeLink struct {
	w bytes.Buffer
	r io.Reader
}

func (f *fakeLink) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *fakeLink) Read(p []byte) (int, error)  { return f.r.Read(p) }

func TestStreamInvoke(t *testing.T) {
	link := &fakeLink{r: bytes.NewReader([]byte{0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})}
	s := NewStream(link, zaptest.NewLogger(t))
	reply := make([]byte, 16)
	n, err := s.Invoke(context.Background(), 0x10, 0, []byte{4, 8, 0, 0}, reply)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("Invoke() = %d, want 5", n)
	}
	if want := []byte{0x10, 0x00, 0x04, 0x00, 4, 8, 0, 0}; !bytes.Equal(link.w.Bytes(), want) {
		t.Errorf("wrote % x, want % x", link.w.Bytes(), want)
	}
}

// stalledReader mimics a UART read timeout.
type stalledReader struct{}

func (stalledReader) Read(p []byte) (int, error) { return 0, nil }

func TestStreamTimeout(t *testing.T) {
	s := NewStream(&fakeLink{r: stalledReader{}}, nil)
	_, err := s.Invoke(context.Background(), 0x10, 0, []byte{1}, make([]byte, 8))
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Invoke() error = %v, want ErrTimeout", err)
	}
}

func TestStreamShortReply(t *testing.T) {
	link := &fakeLink{r: bytes.NewReader([]byte{0x05, 0x00, 0x00})}
	_, err := NewStream(link, nil).Invoke(context.Background(), 0x10, 0, []byte{1}, make([]byte, 8))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Invoke() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

// serveFrames answers framed requests on c with dev until c is closed.
func serveFrames(c net.Conn, dev *cmdqtest.Device) {
	defer c.Close()
	reply := make([]byte, cmdq.ReplyHeaderSize+cmdq.MaxReplyData)
	for {
		var hdr [RequestFrameHeaderSize]byte
		if _, err := io.ReadFull(c, hdr[:]); err != nil {
			return
		}
		req := make([]byte, binary.LittleEndian.Uint16(hdr[2:]))
		if _, err := io.ReadFull(c, req); err != nil {
			return
		}
		n, err := dev.Invoke(context.Background(), hdr[0], hdr[1], req, reply)
		if err != nil {
			return
		}
		out := binary.LittleEndian.AppendUint16(nil, uint16(n))
		if _, err := c.Write(append(out, reply[:n]...)); err != nil {
			return
		}
	}
}

func TestStreamWithEmulator(t *testing.T) {
	host, bridge := net.Pipe()
	defer host.Close()
	dev := &cmdqtest.Device{Regs: map[uint16]byte{0x7008: 0x08}}
	go serveFrames(bridge, dev)

	s := cmdq.NewSession(NewStream(host, nil), cmdq.DefaultChannel, zaptest.NewLogger(t))
	if _, err := s.Do(context.Background(), 4, func(q *cmdq.Queue) error {
		if err := q.WriteReg(0x7203, 0x00); err != nil {
			return err
		}
		return q.WaitClear(0x7a84, 0x01)
	}); err != nil {
		t.Fatal(err)
	}
	r, err := s.Do(context.Background(), 4, func(q *cmdq.Queue) error {
		return q.Read(0x7008, 1)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Data) != 4 || r.Data[3] != 0x08 {
		t.Errorf("read reply = % x", r.Data)
	}
	if dev.Calls() != 2 {
		t.Errorf("device saw %d requests, want 2", dev.Calls())
	}
}
