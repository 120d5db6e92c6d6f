package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/1ureka/terrabridge/internal/protocol"
)

// I/O errors are fatal to the connection that produced them.
var (
	ErrZeroByteRead    = errors.New("transport: peer closed the connection")
	ErrTimeout         = errors.New("transport: read deadline exceeded")
	ErrConnectionReset = errors.New("transport: connection reset")
)

// Classify maps a raw socket or decode error onto the I/O taxonomy.
// Protocol errors and already classified errors are returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrZeroByteRead), errors.Is(err, ErrTimeout), errors.Is(err, ErrConnectionReset):
		return err
	case protocol.IsProtocolError(err):
		return err
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: %w", ErrZeroByteRead, err)
	case isTimeout(err):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrConnectionReset, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsIOError reports whether err belongs to the I/O error class.
func IsIOError(err error) bool {
	return errors.Is(err, ErrZeroByteRead) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnectionReset)
}
