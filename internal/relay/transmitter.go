// Package relay moves packets between the two connections of a paired
// session through bounded, per-direction queues.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/1ureka/terrabridge/internal/handshake"
	"github.com/1ureka/terrabridge/internal/metrics"
	"github.com/1ureka/terrabridge/internal/protocol"
	"github.com/1ureka/terrabridge/internal/util"
)

// DefaultCapacity is the queue capacity used when none is configured.
const DefaultCapacity = 16

// ErrQueueClosed is returned once a transmitter has been closed and drained.
var ErrQueueClosed = errors.New("relay: queue closed")

// Direction is the way packets flow through a transmitter.
type Direction uint8

const (
	AtoB Direction = iota
	BtoA
)

// From returns the direction of traffic read from a connection of role.
func From(role handshake.Role) Direction {
	if role == handshake.RoleA {
		return AtoB
	}
	return BtoA
}

func (d Direction) String() string {
	switch d {
	case AtoB:
		return "RoleA→RoleB"
	case BtoA:
		return "RoleB→RoleA"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// Rewrite transforms a packet in flight.
type Rewrite func(protocol.Packet) protocol.Packet

// Transmitter is one direction of a session: the reader loop of the source
// connection sends into it, the writer loop of the destination connection
// receives from it. The queue is FIFO and bounded, so a slow destination
// stalls the source reader instead of dropping packets.
type Transmitter struct {
	dir     Direction
	queue   chan protocol.Packet
	rewrite Rewrite

	closeOnce sync.Once
	closed    chan struct{}
}

// NewTransmitter returns a transmitter for dir whose queue holds capacity
// packets. A non-positive capacity falls back to DefaultCapacity.
func NewTransmitter(dir Direction, capacity int) *Transmitter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Transmitter{
		dir:    dir,
		queue:  make(chan protocol.Packet, capacity),
		closed: make(chan struct{}),
	}
}

// WithRewrite installs fn as the per-packet transform. The default is the
// identity.
func (t *Transmitter) WithRewrite(fn Rewrite) *Transmitter {
	t.rewrite = fn
	return t
}

// Direction returns the direction t carries.
func (t *Transmitter) Direction() Direction { return t.dir }

// Len returns the number of queued packets.
func (t *Transmitter) Len() int { return len(t.queue) }

// process runs on every packet before it is queued.
func (t *Transmitter) process(p protocol.Packet) protocol.Packet {
	if t.rewrite != nil {
		p = t.rewrite(p)
	}
	util.LogDebug("%s %s", t.dir, protocol.Describe(p))
	metrics.RecordRelayed(t.dir.String(), p.Opcode().String(), protocol.EncodedLen(p))
	util.Stats.AddRelayed()
	return p
}

// Send processes p and queues it, blocking while the queue is full.
func (t *Transmitter) Send(ctx context.Context, p protocol.Packet) error {
	select {
	case <-t.closed:
		return ErrQueueClosed
	default:
	}

	p = t.process(p)
	select {
	case t.queue <- p:
		return nil
	case <-t.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Recv dequeues the next packet, blocking until one is available. Packets
// queued before Close are still delivered.
func (t *Transmitter) Recv(ctx context.Context) (protocol.Packet, error) {
	select {
	case p := <-t.queue:
		return p, nil
	case <-t.closed:
		select {
		case p := <-t.queue:
			return p, nil
		default:
			return nil, ErrQueueClosed
		}
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// Close stops the transmitter. Blocked senders and receivers return
// ErrQueueClosed. Safe to call more than once.
func (t *Transmitter) Close() {
	t.closeOnce.Do(func() { close(t.closed) })
}
