package handshake

import (
	"errors"
	"fmt"

	"github.com/1ureka/terrabridge/internal/protocol"
)

// Handshake errors are fatal to the connection attempting to handshake.
var (
	ErrUnsupportedBrand = errors.New("handshake: unsupported brand")
	ErrUnexpectedPacket = errors.New("handshake: unexpected packet")
	ErrIOFailure        = errors.New("handshake: i/o failure")
	ErrTimeout          = errors.New("handshake: timed out")
)

// UnsupportedBrandError carries the brand a client announced.
type UnsupportedBrandError struct {
	Brand string
}

func (e *UnsupportedBrandError) Error() string {
	return fmt.Sprintf("handshake: unsupported brand %q", e.Brand)
}

func (e *UnsupportedBrandError) Is(target error) bool { return target == ErrUnsupportedBrand }

// UnexpectedPacketError carries the opcode a client sent instead of Connect.
type UnexpectedPacketError struct {
	Opcode protocol.Opcode
}

func (e *UnexpectedPacketError) Error() string {
	return fmt.Sprintf("handshake: expected Connect, got %s", e.Opcode)
}

func (e *UnexpectedPacketError) Is(target error) bool { return target == ErrUnexpectedPacket }
