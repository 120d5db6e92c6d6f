package handshake

import (
	"errors"
	"fmt"
	"time"

	"github.com/1ureka/terrabridge/internal/protocol"
	"github.com/1ureka/terrabridge/internal/transport"
	"github.com/1ureka/terrabridge/internal/util"
)

// DefaultTimeout bounds the single read a handshake performs.
const DefaultTimeout = 5 * time.Second

// State is a negotiator state.
type State uint8

const (
	AwaitingConnect State = iota
	Classified
	Rejected
)

func (s State) String() string {
	switch s {
	case AwaitingConnect:
		return "awaiting-connect"
	case Classified:
		return "classified"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Result is the outcome of one handshake. Role and Brand are only
// meaningful when State is Classified.
type Result struct {
	State State
	Role  Role
	Brand Brand
}

// Classify maps the first packet of a connection onto a role.
func Classify(p protocol.Packet, families Families) (Role, Brand, error) {
	connect, ok := p.(*protocol.Connect)
	if !ok {
		return 0, Brand{}, &UnexpectedPacketError{Opcode: p.Opcode()}
	}

	brand := ParseBrand(connect.Brand)
	role, ok := families.match(brand.Family)
	if !ok {
		return 0, brand, &UnsupportedBrandError{Brand: connect.Brand}
	}
	return role, brand, nil
}

// Negotiator runs the handshake on fresh connections.
type Negotiator struct {
	families Families
	timeout  time.Duration
}

// NewNegotiator returns a negotiator recognising families. A non-positive
// timeout falls back to DefaultTimeout.
func NewNegotiator(families Families, timeout time.Duration) *Negotiator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Negotiator{families: families, timeout: timeout}
}

// Families returns the literals this negotiator recognises.
func (n *Negotiator) Families() Families { return n.families }

// Negotiate performs exactly one bounded read on c and classifies it. The
// caller owns c in both outcomes; on error it should Reject it.
func (n *Negotiator) Negotiate(c *transport.Conn) (Result, error) {
	pkt, err := c.ReadPacket(n.timeout)
	if err != nil {
		err = wrapReadError(err)
		util.LogWarning("[%08x] Handshake read failed: %v", c.ID(), err)
		return Result{State: Rejected}, err
	}

	role, brand, err := Classify(pkt, n.families)
	if err != nil {
		if errors.Is(err, ErrUnexpectedPacket) {
			util.LogWarning("[%08x] Client %s sent %s when Connect was expected", c.ID(), c.RemoteAddr(), protocol.Describe(pkt))
		} else {
			util.LogWarning("[%08x] Client %s uses unknown/unsupported brand %q", c.ID(), c.RemoteAddr(), brand.Raw)
		}
		return Result{State: Rejected, Brand: brand}, err
	}

	switch {
	case brand.Loader != "":
		util.LogInfo("[%08x] Client %s connected as %s with %s version %s", c.ID(), c.RemoteAddr(), role, brand.Loader, brand.Version)
	case brand.Version != "":
		util.LogInfo("[%08x] Client %s connected as %s version %s", c.ID(), c.RemoteAddr(), role, brand.Version)
	default:
		util.LogInfo("[%08x] Client %s connected as %s", c.ID(), c.RemoteAddr(), role)
	}
	return Result{State: Classified, Role: role, Brand: brand}, nil
}

func wrapReadError(err error) error {
	switch {
	case errors.Is(err, transport.ErrTimeout):
		return fmt.Errorf("%w: %w: %w", ErrIOFailure, ErrTimeout, err)
	case transport.IsIOError(err):
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	default:
		return err
	}
}

// SequenceReason is the Disconnect reason sent after a failed handshake.
func SequenceReason(err error) string {
	return fmt.Sprintf("Invalid connection sequence: %v", err)
}

// Reject notifies the client with a Disconnect and closes c. A failed send
// is logged and otherwise ignored.
func Reject(c *transport.Conn, reason string) {
	if err := c.Writer().WritePacket(&protocol.Disconnect{Reason: reason}); err != nil {
		util.LogDebug("[%08x] Failed to send disconnect: %v", c.ID(), err)
	}
	_ = c.Close()
}
