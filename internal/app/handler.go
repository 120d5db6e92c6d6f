package app

import (
	"context"
	"fmt"
	"net"

	"github.com/1ureka/terrabridge/internal/admin"
	"github.com/1ureka/terrabridge/internal/handshake"
	"github.com/1ureka/terrabridge/internal/metrics"
	"github.com/1ureka/terrabridge/internal/protocol"
	"github.com/1ureka/terrabridge/internal/relay"
	"github.com/1ureka/terrabridge/internal/session"
	"github.com/1ureka/terrabridge/internal/transport"
	"github.com/1ureka/terrabridge/internal/util"
)

// handleConn drives one accepted socket through its whole life:
//  1. Handshake (one bounded read, classify or reject)
//  2. Register in the role slot (reject if occupied)
//  3. Send AdvanceState
//  4. Wait for a peer, or pair with the waiting one
//  5. Relay until the session is torn down, then free the slot
func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	c := transport.NewConn(nc)
	id := c.ID()

	// A shutdown closes the socket in whatever phase it is.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	util.LogInfo("[%08x] Receiving connection from client at %s", id, c.RemoteAddr())
	metrics.RecordAccepted()
	s.emit(admin.KindAccepted, c, "", "", "")

	// ── 1. Handshake ───────────────────────────────────────────────────
	res, err := s.negotiator.Negotiate(c)
	if err != nil {
		metrics.RecordHandshake("", handshake.Rejected.String())
		s.emit(admin.KindRejected, c, "", "", err.Error())
		handshake.Reject(c, handshake.SequenceReason(err))
		return
	}
	role := res.Role
	metrics.RecordHandshake(role.String(), handshake.Classified.String())
	s.emit(admin.KindClassified, c, role.String(), "", res.Brand.Raw)

	// ── 2. Register ────────────────────────────────────────────────────
	m := session.NewMember(c, res.Brand)
	reg, err := s.registry.Register(role, m)
	metrics.RecordRegistration(role.String(), reg.Outcome.String())
	if err != nil {
		family := s.negotiator.Families().Name(role)
		util.LogWarning("[%08x] %s client already connected, rejecting %s", id, family, c.RemoteAddr())
		s.emit(admin.KindOccupied, c, role.String(), "", err.Error())
		handshake.Reject(c, fmt.Sprintf("%s already connected", family))
		return
	}
	s.syncOccupancy()

	// ── 3. AdvanceState ────────────────────────────────────────────────
	if err := c.Writer().WritePacket(&protocol.AdvanceState{BridgeInfo: s.cfg.BridgeInfo}); err != nil {
		util.LogWarning("[%08x] Failed to send AdvanceState: %v", id, err)
		_ = c.Close()
		if reg.Outcome == session.Paired {
			// The waiting peer is still healthy; give it back its wait.
			s.registry.Unpair(m)
			s.syncOccupancy()
			s.emit(admin.KindWithdrawn, c, role.String(), "", err.Error())
			return
		}
		// A waiting connection notices its closed socket while parked.
	}

	// ── 4. Pair ────────────────────────────────────────────────────────
	var sess *relay.Session
	switch reg.Outcome {
	case session.WaitingForPeer:
		sess = s.waitForPeer(ctx, m)
		if sess == nil {
			return
		}

	case session.Paired:
		a, b := c, reg.Peer.Conn
		if role == handshake.RoleB {
			a, b = b, a
		}
		sess = relay.NewSession(ctx, a, b, s.cfg.PacketBounds, s.cfg.ReadTimeout.Std())
		m.Attach(sess)
		reg.Peer.Deliver(sess)

		util.LogInfo("[%08x] Paired %s with waiting %s [%08x], session %s", id, role, role.Other(), reg.Peer.Conn.ID(), sess.ID())
		s.emit(admin.KindPaired, c, role.String(), sess.ID(), fmt.Sprintf("peer %08x", reg.Peer.Conn.ID()))
	}

	// ── 5. Relay ───────────────────────────────────────────────────────
	util.LogInfo("[%08x] Entering main translation loop for %s client %s", id, role, c.RemoteAddr())
	cause := sess.Run(role)

	s.registry.Release(m)
	s.syncOccupancy()

	util.LogWarning("[%08x] %s relay terminated: %v", id, role, cause)
	s.emit(admin.KindTerminated, c, role.String(), sess.ID(), relay.Class(cause))
}

// waitForPeer parks m's connection until a peer pairs with it. It returns
// nil if the client hung up or the server shut down first, in which case
// m has been withdrawn and its connection closed.
func (s *Server) waitForPeer(ctx context.Context, m *session.Member) *relay.Session {
	c := m.Conn
	id := c.ID()

	util.LogInfo("[%08x] %s registered, waiting for %s", id, m.Role, m.Role.Other())
	s.emit(admin.KindWaiting, c, m.Role.String(), "", m.Brand.Raw)

	parked := c.Park()

	var reason string
wait:
	for {
		select {
		case sess := <-m.Handoff():
			if sess == nil {
				// The pairing fell through; keep waiting.
				continue
			}
			if err := parked.Unpark(); err != nil {
				util.LogDebug("[%08x] Unpark failed: %v", id, err)
			}
			return sess

		case err := <-parked.Lost():
			reason = err.Error()
			break wait

		case <-ctx.Done():
			reason = "server shutting down"
			break wait
		}
	}

	_ = parked.Unpark()
	for !s.registry.Withdraw(m) {
		// Paired while we were giving up: the pairing handler either
		// delivers the session, whose teardown reaps this socket, or
		// undoes the pairing and lets us withdraw.
		if sess := <-m.Handoff(); sess != nil {
			return sess
		}
	}

	_ = c.Close()
	s.syncOccupancy()
	util.LogWarning("[%08x] %s left before pairing: %s", id, m.Role, reason)
	s.emit(admin.KindWithdrawn, c, m.Role.String(), "", reason)
	return nil
}

func (s *Server) emit(kind string, c *transport.Conn, role, sessionID, detail string) {
	if s.sink == nil {
		return
	}
	e := admin.Event{
		Kind:      kind,
		ConnID:    fmt.Sprintf("%08x", c.ID()),
		Role:      role,
		SessionID: sessionID,
		Detail:    detail,
	}
	if addr := c.RemoteAddr(); addr != nil {
		e.Remote = addr.String()
	}
	s.sink.Publish(e)
}
