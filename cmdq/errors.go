package cmdq

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferOverflow is returned when an append would not fit in the
	// request payload. The queue stays unusable until the next Init.
	ErrBufferOverflow = errors.New("cmdq: request buffer overflow")
	// ErrInvalidOperand is returned for operands the wire format cannot carry.
	ErrInvalidOperand = errors.New("cmdq: invalid operand")
	// ErrTruncated is the reason of a ProtocolError whose reply is shorter
	// than the reply header.
	ErrTruncated = errors.New("cmdq: reply truncated")
	// ErrDeviceFailure is the reason of a ProtocolError whose reply carries a
	// nonzero status.
	ErrDeviceFailure = errors.New("cmdq: device reported failure")
	// ErrMalformed is returned by Decode for requests that do not parse.
	ErrMalformed = errors.New("cmdq: malformed request")
)

// TransportError reports that the Invoker failed to deliver the request or
// collect the reply.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "cmdq: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a reply that arrived but failed validation.
type ProtocolError struct {
	Reason  error // ErrTruncated or ErrDeviceFailure
	N       int   // bytes received
	Status1 byte
	Status2 byte
}

func (e *ProtocolError) Error() string {
	if e.Reason == ErrDeviceFailure {
		return fmt.Sprintf("%v (status 0x%02x, 0x%02x)", e.Reason, e.Status1, e.Status2)
	}
	return fmt.Sprintf("%v (%d bytes)", e.Reason, e.N)
}

func (e *ProtocolError) Unwrap() error {
	return e.Reason
}
