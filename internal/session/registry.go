// Package session holds the two role slots of the bridge and pairs one
// connection of each role.
package session

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/1ureka/terrabridge/internal/handshake"
	"github.com/1ureka/terrabridge/internal/relay"
	"github.com/1ureka/terrabridge/internal/transport"
)

// ErrRoleAlreadyOccupied is returned with the RoleAlreadyOccupied outcome.
var ErrRoleAlreadyOccupied = errors.New("session: role already occupied")

// Outcome is the result of a registration attempt.
type Outcome uint8

const (
	WaitingForPeer Outcome = iota
	Paired
	RoleAlreadyOccupied
)

func (o Outcome) String() string {
	switch o {
	case WaitingForPeer:
		return "waiting"
	case Paired:
		return "paired"
	case RoleAlreadyOccupied:
		return "occupied"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// Member is a classified connection held in a role slot.
type Member struct {
	Role  handshake.Role
	Conn  *transport.Conn
	Brand handshake.Brand
	Since time.Time

	handoff chan *relay.Session
	paired  bool    // guarded by the owning Registry
	partner *Member // guarded by the owning Registry

	mu      sync.Mutex
	session *relay.Session
}

// NewMember wraps a classified connection. Its role is set by Register.
func NewMember(c *transport.Conn, brand handshake.Brand) *Member {
	return &Member{
		Conn:    c,
		Brand:   brand,
		Since:   time.Now(),
		handoff: make(chan *relay.Session, 1),
	}
}

// Handoff delivers the relay session once a peer pairs with this member.
// A nil value means a pairing fell through and the member is waiting again.
func (m *Member) Handoff() <-chan *relay.Session { return m.handoff }

// Deliver attaches s and wakes the member's handler. Only the first
// delivery has an effect.
func (m *Member) Deliver(s *relay.Session) {
	if m.Attach(s) {
		m.handoff <- s
	}
}

// Attach records s without waking anyone. It reports whether s was the
// first session attached.
func (m *Member) Attach(s *relay.Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		return false
	}
	m.session = s
	return true
}

// Session returns the attached relay session, or nil while waiting.
func (m *Member) Session() *relay.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Registration is what Register reports back to the caller.
type Registration struct {
	Outcome Outcome
	// Peer is the already waiting member when Outcome is Paired.
	Peer *Member
}

// Registry holds at most one member per role. All slot mutations happen
// under one lock, so check, compare and store are a single step.
type Registry struct {
	mu    sync.Mutex
	slots [2]*Member
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register places m in role's slot.
func (r *Registry) Register(role handshake.Role, m *Member) (Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slots[role] != nil {
		return Registration{Outcome: RoleAlreadyOccupied}, ErrRoleAlreadyOccupied
	}

	m.Role = role
	r.slots[role] = m

	// A peer that is already paired belongs to a session being torn down.
	peer := r.slots[role.Other()]
	if peer == nil || peer.paired {
		return Registration{Outcome: WaitingForPeer}, nil
	}

	m.paired, m.partner = true, peer
	peer.paired, peer.partner = true, m
	return Registration{Outcome: Paired, Peer: peer}, nil
}

// Unpair undoes a pairing that never got its session: m leaves its slot and
// its partner goes back to waiting. The partner's handler is woken with a
// nil hand-off in case it was already giving up.
func (r *Registry) Unpair(m *Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slots[m.Role] == m {
		r.slots[m.Role] = nil
	}
	peer := m.partner
	m.paired, m.partner = false, nil
	if peer == nil || peer.partner != m {
		return
	}
	peer.paired, peer.partner = false, nil
	select {
	case peer.handoff <- nil:
	default:
	}
}

// Withdraw frees m's slot if m is still waiting for a peer. It reports
// false once m has been paired; the pairing handler then owns m.
func (r *Registry) Withdraw(m *Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slots[m.Role] != m || m.paired {
		return false
	}
	r.slots[m.Role] = nil
	return true
}

// Release frees m's slot after its relay side has terminated, together with
// its partner's slot. A torn-down pair is never offered to a new client.
func (r *Registry) Release(m *Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slots[m.Role] == m {
		r.slots[m.Role] = nil
	}
	if p := m.partner; p != nil && r.slots[p.Role] == p {
		r.slots[p.Role] = nil
	}
}

// SlotStatus describes one role slot.
type SlotStatus struct {
	Role      string    `json:"role"`
	Occupied  bool      `json:"occupied"`
	State     string    `json:"state,omitempty"`
	ConnID    string    `json:"conn_id,omitempty"`
	Remote    string    `json:"remote,omitempty"`
	Brand     string    `json:"brand,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Since     time.Time `json:"since,omitzero"`
}

// Snapshot reports the occupancy of both slots, RoleA first.
func (r *Registry) Snapshot() []SlotStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SlotStatus, 0, len(r.slots))
	for i, m := range r.slots {
		st := SlotStatus{Role: handshake.Role(i).String()}
		if m != nil {
			st.Occupied = true
			st.State = WaitingForPeer.String()
			if m.paired {
				st.State = Paired.String()
			}
			st.Brand = m.Brand.Raw
			st.Since = m.Since
			if m.Conn != nil {
				st.ConnID = fmt.Sprintf("%08x", m.Conn.ID())
				st.Remote = addrString(m.Conn.RemoteAddr())
			}
			if s := m.Session(); s != nil {
				st.SessionID = s.ID()
			}
		}
		out = append(out, st)
	}
	return out
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
