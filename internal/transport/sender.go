package transport

import (
	"net"
	"sync"

	"github.com/1ureka/terrabridge/internal/protocol"
	"github.com/1ureka/terrabridge/internal/util"
)

// Writer is the shared write half of a Conn. Every WritePacket call emits
// one complete frame while holding the lock, so frames from different
// callers never interleave.
type Writer struct {
	id uint32
	mu sync.Mutex
	nc net.Conn
}

// ID returns the owning connection's identifier.
func (w *Writer) ID() uint32 { return w.id }

// WritePacket encodes p and writes the frame. Encoding happens before the
// lock is taken; a packet that cannot be encoded writes nothing.
func (w *Writer) WritePacket(p protocol.Packet) error {
	frame, err := protocol.Encode(p)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.nc.Write(frame); err != nil {
		return Classify(err)
	}
	util.Stats.AddSent(len(frame))
	return nil
}
