// Package transport wraps an accepted TCP socket as a bridge connection: a
// buffered read half owned by exactly one goroutine at a time, and a shared,
// lock-guarded write half that emits whole frames.
package transport

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/1ureka/terrabridge/internal/protocol"
	"github.com/1ureka/terrabridge/internal/util"
)

// readBufferSize bounds how much unread client data the read half holds.
const readBufferSize = 4 * 1024

// Conn is one accepted client socket.
//
// The read half is not safe for concurrent use: the handshake path owns it
// until the connection is paired, then the relay reader loop owns it. The
// write half (Writer) may be shared.
type Conn struct {
	id uint32
	nc net.Conn
	r  *bufio.Reader
	w  *Writer

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewConn takes ownership of nc.
func NewConn(nc net.Conn) *Conn {
	id := util.SocketIDFromConn(nc)
	util.Stats.AddConn()
	return &Conn{
		id:   id,
		nc:   nc,
		r:    bufio.NewReaderSize(nc, readBufferSize),
		w:    &Writer{id: id, nc: nc},
		done: make(chan struct{}),
	}
}

// ID returns a short identifier derived from the socket's 4-tuple, used as
// the log prefix for everything this connection does.
func (c *Conn) ID() uint32 { return c.id }

// RemoteAddr returns the client's address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Writer returns the shared write half.
func (c *Conn) Writer() *Writer { return c.w }

// ReadPacket decodes one frame, failing if the whole frame has not arrived
// within timeout. A zero timeout waits forever.
func (c *Conn) ReadPacket(timeout time.Duration) (protocol.Packet, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.nc.SetReadDeadline(deadline); err != nil {
		return nil, Classify(err)
	}

	pkt, err := protocol.Decode(c.r)
	if err != nil {
		return nil, Classify(err)
	}
	util.Stats.AddRecv(protocol.EncodedLen(pkt))
	return pkt, nil
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close releases the socket. Safe to call from any goroutine, any number of
// times; only the first call has an effect.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.nc.Close()
		util.Stats.RemoveConn()
	})
	return c.closeErr
}
