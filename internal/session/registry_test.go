package session

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/terrabridge/internal/handshake"
	"github.com/1ureka/terrabridge/internal/relay"
	"github.com/1ureka/terrabridge/internal/transport"
)

func member(brand string) *Member {
	return NewMember(nil, handshake.ParseBrand(brand))
}

func pipeMember(t *testing.T, brand string) *Member {
	t.Helper()
	server, client := net.Pipe()
	c := transport.NewConn(server)
	t.Cleanup(func() {
		c.Close()
		client.Close()
	})
	return NewMember(c, handshake.ParseBrand(brand))
}

func TestRegisterSameRoleTwice(t *testing.T) {
	r := NewRegistry()

	reg, err := r.Register(handshake.RoleA, member("RoleA/1.0"))
	require.NoError(t, err)
	assert.Equal(t, WaitingForPeer, reg.Outcome)

	reg, err = r.Register(handshake.RoleA, member("RoleA/1.1"))
	assert.ErrorIs(t, err, ErrRoleAlreadyOccupied)
	assert.Equal(t, RoleAlreadyOccupied, reg.Outcome)
	assert.Nil(t, reg.Peer)
}

func TestRegisterPairs(t *testing.T) {
	r := NewRegistry()
	a := member("RoleA/1.0")
	b := member("RoleB/loader/2.0")

	reg, err := r.Register(handshake.RoleA, a)
	require.NoError(t, err)
	assert.Equal(t, WaitingForPeer, reg.Outcome)

	reg, err = r.Register(handshake.RoleB, b)
	require.NoError(t, err)
	assert.Equal(t, Paired, reg.Outcome)
	assert.Same(t, a, reg.Peer)
	assert.Equal(t, handshake.RoleB, b.Role)

	for _, st := range r.Snapshot() {
		assert.True(t, st.Occupied)
		assert.Equal(t, "paired", st.State)
	}
}

func TestConcurrentRegisterSameRole(t *testing.T) {
	r := NewRegistry()

	const n = 64
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		occupied int
	)
	start := make(chan struct{})
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			reg, _ := r.Register(handshake.RoleB, member("RoleB/1.0"))
			mu.Lock()
			defer mu.Unlock()
			switch reg.Outcome {
			case WaitingForPeer:
				accepted++
			case RoleAlreadyOccupied:
				occupied++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, n-1, occupied)
}

func TestWithdrawWaiting(t *testing.T) {
	r := NewRegistry()
	a := member("RoleA/1.0")
	_, err := r.Register(handshake.RoleA, a)
	require.NoError(t, err)

	assert.True(t, r.Withdraw(a))
	assert.False(t, r.Snapshot()[handshake.RoleA].Occupied)

	reg, err := r.Register(handshake.RoleA, member("RoleA/2.0"))
	require.NoError(t, err)
	assert.Equal(t, WaitingForPeer, reg.Outcome)
}

func TestWithdrawAfterPairingRefused(t *testing.T) {
	r := NewRegistry()
	a := member("RoleA/1.0")
	_, err := r.Register(handshake.RoleA, a)
	require.NoError(t, err)
	_, err = r.Register(handshake.RoleB, member("RoleB/1.0"))
	require.NoError(t, err)

	assert.False(t, r.Withdraw(a))
	assert.True(t, r.Snapshot()[handshake.RoleA].Occupied)
}

func TestReleaseFreesBothSlotsOfPair(t *testing.T) {
	r := NewRegistry()
	a := member("RoleA/1.0")
	b := member("RoleB/1.0")
	_, _ = r.Register(handshake.RoleA, a)
	_, _ = r.Register(handshake.RoleB, b)

	r.Release(a)
	snap := r.Snapshot()
	assert.False(t, snap[handshake.RoleA].Occupied)
	assert.False(t, snap[handshake.RoleB].Occupied)

	// A newcomer waits instead of pairing with the torn-down member.
	a2 := member("RoleA/2.0")
	reg, err := r.Register(handshake.RoleA, a2)
	require.NoError(t, err)
	assert.Equal(t, WaitingForPeer, reg.Outcome)

	// Late releases from the old pair leave the newcomer in place.
	r.Release(b)
	r.Release(a)
	assert.True(t, r.Snapshot()[handshake.RoleA].Occupied)

	reg, err = r.Register(handshake.RoleB, member("RoleB/2.0"))
	require.NoError(t, err)
	assert.Equal(t, Paired, reg.Outcome)
	assert.Same(t, a2, reg.Peer)
}

func TestRegisterSkipsPairedPeer(t *testing.T) {
	r := NewRegistry()
	a := member("RoleA/1.0")
	b := member("RoleB/1.0")
	_, _ = r.Register(handshake.RoleA, a)
	_, _ = r.Register(handshake.RoleB, b)

	// Slot A freed on its own leaves b paired with nobody live.
	r.mu.Lock()
	r.slots[handshake.RoleA] = nil
	r.mu.Unlock()

	reg, err := r.Register(handshake.RoleA, member("RoleA/2.0"))
	require.NoError(t, err)
	assert.Equal(t, WaitingForPeer, reg.Outcome)
	assert.Nil(t, reg.Peer)
}

func TestUnpairReturnsPeerToWaiting(t *testing.T) {
	r := NewRegistry()
	a := member("RoleA/1.0")
	_, _ = r.Register(handshake.RoleA, a)
	b := member("RoleB/1.0")
	reg, err := r.Register(handshake.RoleB, b)
	require.NoError(t, err)
	require.Equal(t, Paired, reg.Outcome)

	r.Unpair(b)

	snap := r.Snapshot()
	assert.Equal(t, WaitingForPeer.String(), snap[handshake.RoleA].State)
	assert.False(t, snap[handshake.RoleB].Occupied)
	select {
	case s := <-a.Handoff():
		assert.Nil(t, s)
	default:
		t.Fatal("waiting member not woken")
	}

	// The waiting member can be withdrawn or paired again.
	reg, err = r.Register(handshake.RoleB, member("RoleB/2.0"))
	require.NoError(t, err)
	assert.Equal(t, Paired, reg.Outcome)
	assert.Same(t, a, reg.Peer)
}

func TestDeliverOnce(t *testing.T) {
	a := pipeMember(t, "RoleA/1.0")
	b := pipeMember(t, "RoleB/1.0")
	s := relay.NewSession(context.Background(), a.Conn, b.Conn, 1, time.Second)
	t.Cleanup(s.Close)

	a.Deliver(s)
	a.Deliver(s)

	select {
	case got := <-a.Handoff():
		assert.Same(t, s, got)
	default:
		t.Fatal("session not handed off")
	}
	select {
	case <-a.Handoff():
		t.Fatal("session handed off twice")
	default:
	}
	assert.Same(t, s, a.Session())
}

func TestSnapshot(t *testing.T) {
	r := NewRegistry()
	a := pipeMember(t, "RoleA/Fabric/1.18.2")
	_, err := r.Register(handshake.RoleA, a)
	require.NoError(t, err)

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "RoleA", snap[0].Role)
	assert.Equal(t, "waiting", snap[0].State)
	assert.Equal(t, "RoleA/Fabric/1.18.2", snap[0].Brand)
	assert.Len(t, snap[0].ConnID, 8)
	assert.Equal(t, "pipe", snap[0].Remote)
	assert.Equal(t, "RoleB", snap[1].Role)
	assert.False(t, snap[1].Occupied)
}
