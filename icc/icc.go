// Package icc carries command queue requests to the bridge over byte links.
//
// The bridge sits behind a host controller that multiplexes channels. On a
// byte link every request is wrapped in a frame naming the channel:
//
//	channel:u8  sub:u8  length:u16le  request[length]
//
// and every reply comes back as:
//
//	length:u16le  reply[length]
//
// Conn runs this framing over a periph.io connection (I²C or SPI), Stream
// over any io.ReadWriter, Serial over a UART and USB over a pair of bulk
// endpoints. All of them implement cmdq.Invoker.
package icc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame sizes.
const (
	RequestFrameHeaderSize = 4
	ReplyFrameHeaderSize   = 2

	// MaxFrame bounds either frame, header included.
	MaxFrame = 0x800
)

var (
	// ErrTimeout is returned when the link stops delivering reply bytes.
	ErrTimeout = errors.New("icc: timeout waiting for reply")
	// ErrReplyTooLarge is returned when the announced reply does not fit the
	// caller's buffer.
	ErrReplyTooLarge = errors.New("icc: reply larger than buffer")
	// ErrRequestTooLarge is returned for requests that cannot be framed.
	ErrRequestTooLarge = errors.New("icc: request too large")
	// ErrClosed is returned by transports used after Close.
	ErrClosed = errors.New("icc: closed")
)

// appendRequest appends the framed request to dst.
func appendRequest(dst []byte, channel, sub uint8, req []byte) ([]byte, error) {
	if len(req)+RequestFrameHeaderSize > MaxFrame {
		return nil, fmt.Errorf("%w: %d bytes", ErrRequestTooLarge, len(req))
	}
	dst = append(dst, channel, sub)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(req)))
	return append(dst, req...), nil
}

// replyLen decodes a reply frame header and checks it against capacity.
func replyLen(hdr []byte, capacity int) (int, error) {
	n := int(binary.LittleEndian.Uint16(hdr))
	if n > capacity {
		return 0, fmt.Errorf("%w: %d > %d", ErrReplyTooLarge, n, capacity)
	}
	return n, nil
}

// timeoutReader turns the (0, nil) result some UART drivers return on a read
// timeout into ErrTimeout, so io.ReadFull cannot spin.
type timeoutReader struct {
	r io.Reader
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, ErrTimeout
	}
	return n, err
}
