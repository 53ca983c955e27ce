package cmdq

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Wire sizes and capacities.
const (
	RequestHeaderSize = 4
	GroupHeaderSize   = 4
	ReplyHeaderSize   = 5

	MaxPayload   = 2028
	MaxReplyData = 2027

	// MaxGroupLength bounds a group including its header; the length field
	// is a single byte.
	MaxGroupLength = 0xff
	// MaxGroupOps bounds the operation count field of a group.
	MaxGroupOps = 0xff

	// MaxWriteLen is the largest data run a single write operand can carry.
	MaxWriteLen = MaxGroupLength - GroupHeaderSize - 3
)

// DefaultChannel is the ICC channel serving the bridge command queue.
const DefaultChannel = 0x10

// Byte offsets within a command group header.
const (
	grpMajor  = 0
	grpMinor  = 1
	grpLength = 2
	grpCount  = 3
)

// Byte offsets within the request and reply headers.
const (
	reqCode   = 0
	reqLength = 1
	reqGroups = 3

	repStatus1 = 0
	repStatus2 = 1
	repCount   = 4
)

// Invoker hands a finished request to the channel that reaches the bridge and
// collects its reply into reply, returning the number of bytes received.
//
// Invoke must not reorder or duplicate bytes. It may block; timeouts belong to
// the implementation and surface as errors.
type Invoker interface {
	Invoke(ctx context.Context, channel, sub uint8, req, reply []byte) (int, error)
}

// InvokerFunc adapts an ordinary function to the Invoker interface.
type InvokerFunc func(ctx context.Context, channel, sub uint8, req, reply []byte) (int, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, channel, sub uint8, req, reply []byte) (int, error) {
	return f(ctx, channel, sub, req, reply)
}

// Queue builds one request and holds the matching reply.
//
// Consecutive operations of the same kind share one command group. Because a
// group's length and operation count are single bytes, a long run is split
// into several groups of that kind once either field would exceed 255; a run
// of 63 four-byte writes, for example, yields two groups.
//
// The zero value is not ready for use; create queues with New.
type Queue struct {
	channel uint8

	req   [RequestHeaderSize + MaxPayload]byte
	reply [ReplyHeaderSize + MaxReplyData]byte

	p      int  // write cursor in req
	open   int  // offset of the open group header, -1 when none
	kind   Kind // kind of the open group
	groups int
	n      int   // reply bytes received by the last Execute
	err    error // sticky overflow
}

// New returns an initialized queue that executes on the given ICC channel.
func New(channel uint8) *Queue {
	q := &Queue{channel: channel}
	q.Init(0)
	return q
}

// Init discards any unexecuted request and starts a new one tagged with code.
func (q *Queue) Init(code uint8) {
	q.req[reqCode] = code
	q.req[reqGroups] = 0
	q.p = RequestHeaderSize
	q.open = -1
	q.kind = 0
	q.groups = 0
	q.n = 0
	q.err = nil
}

// Code returns the session tag of the request being built.
func (q *Queue) Code() uint8 {
	return q.req[reqCode]
}

// Groups returns the number of command groups opened since Init.
func (q *Queue) Groups() int {
	return q.groups
}

// Len returns the encoded request size so far, header included.
func (q *Queue) Len() int {
	return q.p
}

// Err returns the overflow that poisoned the current cycle, if any.
func (q *Queue) Err() error {
	return q.err
}

// grow reserves size operand bytes for an operation of kind k, coalescing
// into the open group when possible, and returns the reserved slice.
// Nothing is written when the reservation fails.
func (q *Queue) grow(k Kind, size int) ([]byte, error) {
	if q.err != nil {
		return nil, q.err
	}
	// Extend the open group if it has the same kind and room left
	if q.open >= 0 && q.kind == k &&
		q.p-q.open+size <= MaxGroupLength &&
		q.req[q.open+grpCount] < MaxGroupOps {
		if q.p+size > len(q.req) {
			return nil, q.overflow(size)
		}
		q.req[q.open+grpCount]++
		b := q.req[q.p : q.p+size]
		q.p += size
		return b, nil
	}

	// Otherwise open a new group
	if q.p+GroupHeaderSize+size > len(q.req) {
		return nil, q.overflow(GroupHeaderSize + size)
	}
	q.closeGroup()
	major, minor := k.Opcode()
	h := q.req[q.p : q.p+GroupHeaderSize]
	h[grpMajor] = major
	h[grpMinor] = minor
	h[grpLength] = 0
	h[grpCount] = 1
	q.open = q.p
	q.kind = k
	q.groups++
	q.req[reqGroups] = byte(q.groups)
	q.p += GroupHeaderSize

	b := q.req[q.p : q.p+size]
	q.p += size
	return b, nil
}

func (q *Queue) overflow(size int) error {
	q.err = fmt.Errorf("%w: %d bytes at payload offset %d", ErrBufferOverflow, size, q.p-RequestHeaderSize)
	return q.err
}

// closeGroup writes back the length of the open group.
func (q *Queue) closeGroup() {
	if q.open >= 0 {
		q.req[q.open+grpLength] = byte(q.p - q.open)
	}
}

// finalize closes the open group and stores the request length.
func (q *Queue) finalize() {
	q.closeGroup()
	binary.LittleEndian.PutUint16(q.req[reqLength:], uint16(q.p))
}

// Read queues a read of count bytes starting at addr.
func (q *Queue) Read(addr uint16, count uint8) error {
	if count == 0 {
		return fmt.Errorf("%w: read of zero bytes at %#06x", ErrInvalidOperand, addr)
	}
	b, err := q.grow(OpRead, 4)
	if err != nil {
		return err
	}
	b[0] = count
	b[1] = byte(addr >> 8)
	b[2] = byte(addr)
	b[3] = 0
	return nil
}

// Write queues a write of data to consecutive registers starting at addr.
func (q *Queue) Write(addr uint16, data ...byte) error {
	if len(data) == 0 || len(data) > MaxWriteLen {
		return fmt.Errorf("%w: write of %d bytes at %#06x", ErrInvalidOperand, len(data), addr)
	}
	b, err := q.grow(OpWrite, 3+len(data))
	if err != nil {
		return err
	}
	b[0] = byte(len(data))
	b[1] = byte(addr >> 8)
	b[2] = byte(addr)
	copy(b[3:], data)
	return nil
}

// WriteReg queues a single-byte register write.
func (q *Queue) WriteReg(addr uint16, data byte) error {
	return q.Write(addr, data)
}

// Mask queues a read-modify-write that sets the bits selected by mask to
// the corresponding bits of value.
func (q *Queue) Mask(addr uint16, value, mask byte) error {
	b, err := q.grow(OpMask, 5)
	if err != nil {
		return err
	}
	b[0] = 1
	b[1] = byte(addr >> 8)
	b[2] = byte(addr)
	b[3] = value
	b[4] = mask
	return nil
}

// Delay queues a remote-side stall. The unit of t is defined by the bridge
// firmware.
func (q *Queue) Delay(t uint16) error {
	b, err := q.grow(OpDelay, 4)
	if err != nil {
		return err
	}
	b[0] = 0
	b[1] = byte(t)
	b[2] = byte(t >> 8)
	b[3] = 0
	return nil
}

// WaitSet queues a wait until every bit of mask is set at addr.
func (q *Queue) WaitSet(addr uint16, mask byte) error {
	return q.wait(OpWaitSet, addr, mask)
}

// WaitClear queues a wait until every bit of mask is clear at addr.
func (q *Queue) WaitClear(addr uint16, mask byte) error {
	return q.wait(OpWaitClear, addr, mask)
}

func (q *Queue) wait(k Kind, addr uint16, mask byte) error {
	b, err := q.grow(k, 4)
	if err != nil {
		return err
	}
	b[0] = 0
	b[1] = byte(addr >> 8)
	b[2] = byte(addr)
	b[3] = mask
	return nil
}

// Append queues ops in order. It stops at the first failing operation.
func (q *Queue) Append(ops ...Op) error {
	for i, op := range ops {
		var err error
		switch op.Kind {
		case OpRead:
			err = q.Read(op.Addr, op.Count)
		case OpWrite:
			err = q.Write(op.Addr, op.Data...)
		case OpMask:
			err = q.Mask(op.Addr, op.Value, op.Mask)
		case OpDelay:
			err = q.Delay(op.Duration)
		case OpWaitSet:
			err = q.WaitSet(op.Addr, op.Mask)
		case OpWaitClear:
			err = q.WaitClear(op.Addr, op.Mask)
		default:
			err = fmt.Errorf("%w: unknown kind %v", ErrInvalidOperand, op.Kind)
		}
		if err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}
	return nil
}

// Request finalizes the pending request and returns its encoding without
// sending it. The returned slice aliases the queue buffer.
func (q *Queue) Request() []byte {
	q.finalize()
	return q.req[:q.p]
}

// Execute sends the request through inv and validates the reply.
//
// A queue with no operations succeeds immediately without touching the
// transport. On success it returns the number of reply bytes received.
func (q *Queue) Execute(ctx context.Context, inv Invoker) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	q.n = 0
	if q.open < 0 {
		return 0, nil
	}
	q.finalize()

	n, err := inv.Invoke(ctx, q.channel, 0, q.req[:q.p], q.reply[:])
	if err != nil {
		return 0, &TransportError{Err: err}
	}
	if n < 0 || n > len(q.reply) {
		return 0, &TransportError{Err: fmt.Errorf("invoker reported %d bytes for a %d byte reply buffer", n, len(q.reply))}
	}
	q.n = n
	if n < ReplyHeaderSize {
		return n, &ProtocolError{Reason: ErrTruncated, N: n}
	}
	if s1, s2 := q.reply[repStatus1], q.reply[repStatus2]; s1 != 0 || s2 != 0 {
		return n, &ProtocolError{Reason: ErrDeviceFailure, N: n, Status1: s1, Status2: s2}
	}
	return n, nil
}

// Received returns the number of reply bytes the last Execute received.
func (q *Queue) Received() int {
	return q.n
}

// Status returns the two status bytes of the last reply.
func (q *Queue) Status() (status1, status2 byte) {
	if q.n < ReplyHeaderSize {
		return 0, 0
	}
	return q.reply[repStatus1], q.reply[repStatus2]
}

// Data returns the reply payload of the last Execute: data_count bytes as
// reported by the device, limited to what was actually received. The slice
// aliases the queue buffer and is overwritten by the next Execute.
func (q *Queue) Data() []byte {
	if q.n < ReplyHeaderSize {
		return nil
	}
	n := min(int(q.reply[repCount]), q.n-ReplyHeaderSize)
	return q.reply[ReplyHeaderSize : ReplyHeaderSize+n]
}
