package cmdq

//go:generate go tool stringer -type=Kind

// Kind is one of the register operations the bridge understands.
type Kind uint8

const (
	// OpRead reads count bytes starting at a 16-bit register address.
	OpRead Kind = iota + 1
	// OpWrite writes bytes starting at a register address.
	OpWrite
	// OpMask replaces the bits selected by mask with value.
	OpMask
	// OpDelay stalls the remote command processor.
	OpDelay
	// OpWaitSet blocks until all mask bits are set at the address.
	OpWaitSet
	// OpWaitClear blocks until all mask bits are clear at the address.
	OpWaitClear
)

type opcode struct {
	major, minor uint8
}

var opcodes = [...]opcode{
	OpRead:      {1, 1},
	OpWrite:     {2, 2},
	OpMask:      {2, 3},
	OpDelay:     {3, 1},
	OpWaitSet:   {3, 2},
	OpWaitClear: {3, 3},
}

// Valid reports whether k is a known operation kind.
func (k Kind) Valid() bool {
	return k >= OpRead && k <= OpWaitClear
}

// Opcode returns the (major, minor) pair identifying k on the wire.
func (k Kind) Opcode() (major, minor uint8) {
	if !k.Valid() {
		return 0, 0
	}
	op := opcodes[k]
	return op.major, op.minor
}

// kindOf maps a wire opcode back to its Kind.
func kindOf(major, minor uint8) (Kind, bool) {
	for k := OpRead; k <= OpWaitClear; k++ {
		if op := opcodes[k]; op.major == major && op.minor == minor {
			return k, true
		}
	}
	return 0, false
}
