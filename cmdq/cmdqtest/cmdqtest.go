// Package cmdqtest provides an in-memory bridge for testing code built on
// package cmdq.
package cmdqtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"periph.io/x/devices/v3/mn864xx/cmdq"
)

// Status codes reported by Device in status1.
const (
	StatusMalformed   = 0x01
	StatusWaitTimeout = 0x02
	StatusOverrun     = 0x03
)

// Device emulates the bridge command processor over a register file.
//
// Reads answer with a block {count, addr_hi, addr_lo, data[count]} per read,
// in request order. A wait whose condition does not hold at the time it is
// reached aborts the request with StatusWaitTimeout.
type Device struct {
	sync.Mutex
	// Regs is the register file. Missing registers read as zero.
	Regs map[uint16]byte
	// SelfClear lists bits the hardware clears right after they are written,
	// such as update strobes.
	SelfClear map[uint16]byte
	// Err, when set, is returned by Invoke without processing the request.
	Err error
	// Status, when nonzero, is reported as status2 of every reply.
	Status byte
	// Requests records every decoded request in arrival order.
	Requests []*cmdq.Request
	// Delays accumulates the durations of executed delays.
	Delays int
	// Channels records the channel of every call.
	Channels []uint8
}

// Invoke implements cmdq.Invoker.
func (d *Device) Invoke(ctx context.Context, channel, sub uint8, req, reply []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.Lock()
	defer d.Unlock()
	d.Channels = append(d.Channels, channel)
	if d.Err != nil {
		return 0, d.Err
	}
	if d.Regs == nil {
		d.Regs = map[uint16]byte{}
	}
	if sub != 0 {
		return 0, fmt.Errorf("cmdqtest: unexpected sub channel %d", sub)
	}

	r, err := cmdq.Decode(req)
	if err != nil {
		return d.respond(reply, StatusMalformed, nil)
	}
	d.Requests = append(d.Requests, r)

	var data []byte
	for _, op := range r.Ops() {
		switch op.Kind {
		case cmdq.OpRead:
			data = append(data, op.Count, byte(op.Addr>>8), byte(op.Addr))
			for i := 0; i < int(op.Count); i++ {
				data = append(data, d.Regs[op.Addr+uint16(i)])
			}
		case cmdq.OpWrite:
			for i, b := range op.Data {
				d.store(op.Addr+uint16(i), b)
			}
		case cmdq.OpMask:
			d.store(op.Addr, d.Regs[op.Addr]&^op.Mask|op.Value&op.Mask)
		case cmdq.OpDelay:
			d.Delays += int(op.Duration)
		case cmdq.OpWaitSet:
			if d.Regs[op.Addr]&op.Mask != op.Mask {
				return d.respond(reply, StatusWaitTimeout, data)
			}
		case cmdq.OpWaitClear:
			if d.Regs[op.Addr]&op.Mask != 0 {
				return d.respond(reply, StatusWaitTimeout, data)
			}
		}
	}
	return d.respond(reply, 0, data)
}

func (d *Device) store(addr uint16, v byte) {
	d.Regs[addr] = v &^ d.SelfClear[addr]
}

func (d *Device) respond(reply []byte, status byte, data []byte) (int, error) {
	if len(data) > 0xff {
		status, data = StatusOverrun, nil
	}
	n := cmdq.ReplyHeaderSize + len(data)
	if n > len(reply) {
		return 0, errors.New("cmdqtest: reply buffer too small")
	}
	reply[0] = status
	reply[1] = d.Status
	reply[2] = 0
	reply[3] = 0
	reply[4] = byte(len(data))
	copy(reply[cmdq.ReplyHeaderSize:], data)
	return n, nil
}

// Calls returns the number of requests the device accepted.
func (d *Device) Calls() int {
	d.Lock()
	defer d.Unlock()
	return len(d.Requests)
}

// Last returns the most recent decoded request, or nil.
func (d *Device) Last() *cmdq.Request {
	d.Lock()
	defer d.Unlock()
	if len(d.Requests) == 0 {
		return nil
	}
	return d.Requests[len(d.Requests)-1]
}

var _ cmdq.Invoker = &Device{}
