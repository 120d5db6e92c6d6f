package protocol

import (
	"errors"
	"fmt"
)

// Protocol errors are fatal to the connection whose byte stream produced them.
var (
	ErrUnknownOpcode   = errors.New("protocol: unknown opcode")
	ErrOversizedString = errors.New("protocol: string exceeds maximum length")
	ErrInvalidUTF8     = errors.New("protocol: string is not valid utf-8")
	ErrMalformedField  = errors.New("protocol: malformed field")
)

// UnknownOpcodeError reports an opcode byte outside the packet catalog.
type UnknownOpcodeError struct {
	Opcode byte
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("protocol: unknown opcode 0x%02x", e.Opcode)
}

// Is makes errors.Is(err, ErrUnknownOpcode) hold for any UnknownOpcodeError.
func (e *UnknownOpcodeError) Is(target error) bool {
	return target == ErrUnknownOpcode
}

// IsProtocolError reports whether err belongs to the protocol error class.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrUnknownOpcode) ||
		errors.Is(err, ErrOversizedString) ||
		errors.Is(err, ErrInvalidUTF8) ||
		errors.Is(err, ErrMalformedField)
}
