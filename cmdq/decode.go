package cmdq

import (
	"encoding/binary"
	"fmt"
)

// Op is one register operation in decoded or to-be-queued form.
type Op struct {
	Kind     Kind
	Addr     uint16
	Count    uint8  // OpRead
	Data     []byte // OpWrite
	Value    byte   // OpMask
	Mask     byte   // OpMask, OpWaitSet, OpWaitClear
	Duration uint16 // OpDelay
}

// Size returns the encoded operand size of op.
func (op Op) Size() int {
	switch op.Kind {
	case OpWrite:
		return 3 + len(op.Data)
	case OpMask:
		return 5
	default:
		return 4
	}
}

func (op Op) String() string {
	switch op.Kind {
	case OpRead:
		return fmt.Sprintf("read %#06x[%d]", op.Addr, op.Count)
	case OpWrite:
		return fmt.Sprintf("write %#06x % x", op.Addr, op.Data)
	case OpMask:
		return fmt.Sprintf("mask %#06x value=0x%02x mask=0x%02x", op.Addr, op.Value, op.Mask)
	case OpDelay:
		return fmt.Sprintf("delay %d", op.Duration)
	case OpWaitSet:
		return fmt.Sprintf("wait-set %#06x mask=0x%02x", op.Addr, op.Mask)
	case OpWaitClear:
		return fmt.Sprintf("wait-clear %#06x mask=0x%02x", op.Addr, op.Mask)
	}
	return op.Kind.String()
}

// Group is a decoded command group.
type Group struct {
	Kind Kind
	Ops  []Op
}

// Request is a decoded command queue request.
type Request struct {
	Code   uint8
	Groups []Group
}

// Ops returns every operation of r in wire order.
func (r *Request) Ops() []Op {
	var ops []Op
	for _, g := range r.Groups {
		ops = append(ops, g.Ops...)
	}
	return ops
}

// Decode parses an encoded request, checking every length and count field.
func Decode(b []byte) (*Request, error) {
	if len(b) < RequestHeaderSize {
		return nil, fmt.Errorf("%w: %d byte header", ErrMalformed, len(b))
	}
	if l := int(binary.LittleEndian.Uint16(b[reqLength:])); l != len(b) {
		return nil, fmt.Errorf("%w: length field %d, have %d bytes", ErrMalformed, l, len(b))
	}
	if len(b) > RequestHeaderSize+MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes exceeds capacity", ErrMalformed, len(b))
	}
	r := &Request{Code: b[reqCode]}
	want := int(b[reqGroups])
	p := b[RequestHeaderSize:]
	for len(p) > 0 {
		g, err := decodeGroup(p)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", len(r.Groups), err)
		}
		r.Groups = append(r.Groups, g)
		p = p[p[grpLength]:]
	}
	if len(r.Groups) != want {
		return nil, fmt.Errorf("%w: group count %d, found %d", ErrMalformed, want, len(r.Groups))
	}
	return r, nil
}

func decodeGroup(p []byte) (Group, error) {
	if len(p) < GroupHeaderSize {
		return Group{}, fmt.Errorf("%w: short group header", ErrMalformed)
	}
	k, ok := kindOf(p[grpMajor], p[grpMinor])
	if !ok {
		return Group{}, fmt.Errorf("%w: unknown opcode (%d,%d)", ErrMalformed, p[grpMajor], p[grpMinor])
	}
	l := int(p[grpLength])
	if l < GroupHeaderSize || l > len(p) {
		return Group{}, fmt.Errorf("%w: group length %d", ErrMalformed, l)
	}
	g := Group{Kind: k}
	body := p[GroupHeaderSize:l]
	for i := 0; i < int(p[grpCount]); i++ {
		op, n, err := decodeOp(k, body)
		if err != nil {
			return Group{}, fmt.Errorf("op %d: %w", i, err)
		}
		g.Ops = append(g.Ops, op)
		body = body[n:]
	}
	if len(body) != 0 {
		return Group{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(body))
	}
	return g, nil
}

func decodeOp(k Kind, b []byte) (Op, int, error) {
	size := 4
	if k == OpMask {
		size = 5
	}
	if len(b) < size {
		return Op{}, 0, fmt.Errorf("%w: short %v operand", ErrMalformed, k)
	}
	op := Op{Kind: k, Addr: uint16(b[1])<<8 | uint16(b[2])}
	switch k {
	case OpRead:
		op.Count = b[0]
	case OpWrite:
		size = 3 + int(b[0])
		if b[0] == 0 || len(b) < size {
			return Op{}, 0, fmt.Errorf("%w: write of %d bytes", ErrMalformed, b[0])
		}
		op.Data = append([]byte(nil), b[3:size]...)
	case OpMask:
		if b[0] != 1 {
			return Op{}, 0, fmt.Errorf("%w: mask count %d", ErrMalformed, b[0])
		}
		op.Value = b[3]
		op.Mask = b[4]
	case OpDelay:
		op.Addr = 0
		op.Duration = uint16(b[1]) | uint16(b[2])<<8
	case OpWaitSet, OpWaitClear:
		op.Mask = b[3]
	}
	return op, size, nil
}
