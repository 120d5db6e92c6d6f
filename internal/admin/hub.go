// Package admin serves an optional HTTP view of the bridge: health, slot
// occupancy, recent lifecycle events, a live event stream, and metrics.
package admin

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is how many events the hub remembers.
const DefaultCapacity = 256

// Event kinds.
const (
	KindAccepted   = "accepted"
	KindClassified = "classified"
	KindRejected   = "rejected"
	KindWaiting    = "waiting"
	KindPaired     = "paired"
	KindOccupied   = "occupied"
	KindWithdrawn  = "withdrawn"
	KindTerminated = "terminated"
)

// Event is one connection lifecycle step.
type Event struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Kind      string    `json:"kind"`
	ConnID    string    `json:"conn_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	Remote    string    `json:"remote,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Hub keeps the most recent events in a ring and fans new ones out to
// live subscribers. Publish never blocks: a subscriber that falls behind
// misses events.
type Hub struct {
	mu   sync.Mutex
	ring []Event
	next int
	full bool
	subs map[chan Event]struct{}
}

// NewHub returns a hub remembering capacity events. A non-positive
// capacity falls back to DefaultCapacity.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{
		ring: make([]Event, capacity),
		subs: make(map[chan Event]struct{}),
	}
}

// Publish stores e and forwards it to subscribers. Missing ID and Time are
// filled in.
func (h *Hub) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring[h.next] = e
	h.next = (h.next + 1) % len(h.ring)
	if h.next == 0 {
		h.full = true
	}

	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Recent returns up to limit events, oldest first. A non-positive limit
// returns everything stored.
func (h *Hub) Recent(limit int) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Event
	if h.full {
		out = append(out, h.ring[h.next:]...)
	}
	out = append(out, h.ring[:h.next]...)

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Subscribe registers a live listener with room for buffer pending events.
// The returned cancel func unregisters it and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
