// Package app runs the bridge: it accepts client connections, classifies
// them, pairs one of each role and relays between them.
package app

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/1ureka/terrabridge/internal/admin"
	"github.com/1ureka/terrabridge/internal/config"
	"github.com/1ureka/terrabridge/internal/handshake"
	"github.com/1ureka/terrabridge/internal/metrics"
	"github.com/1ureka/terrabridge/internal/session"
	"github.com/1ureka/terrabridge/internal/util"
)

// EventSink receives connection lifecycle events.
type EventSink interface {
	Publish(admin.Event)
}

// Option customises a Server.
type Option func(*Server)

// WithEventSink publishes lifecycle events to sink.
func WithEventSink(sink EventSink) Option {
	return func(s *Server) { s.sink = sink }
}

// WithRegistry makes the server use r instead of a fresh registry.
func WithRegistry(r *session.Registry) Option {
	return func(s *Server) { s.registry = r }
}

// Server is the bridge's accept loop and per-connection lifecycle.
type Server struct {
	cfg        config.Config
	negotiator *handshake.Negotiator
	registry   *session.Registry
	sink       EventSink

	wg sync.WaitGroup
}

// NewServer builds a server from a validated configuration.
func NewServer(cfg config.Config, opts ...Option) *Server {
	s := &Server{
		cfg: cfg,
		negotiator: handshake.NewNegotiator(
			handshake.Families{A: cfg.Families.RoleA, B: cfg.Families.RoleB},
			cfg.HandshakeTimeout.Std(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = session.NewRegistry()
	}
	return s
}

// Registry returns the server's role slots.
func (s *Server) Registry() *session.Registry { return s.registry }

// ListenAndServe binds the configured address and serves until ctx is
// cancelled. A bind failure is returned immediately.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	util.LogSuccess("Bridge Server started on %s", listener.Addr())
	return s.Serve(ctx, listener)
}

// Serve accepts connections on l until ctx is cancelled, handling each on
// its own goroutine. It closes l and waits for every handler to finish
// before returning.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	metrics.RegisterMetrics()
	s.syncOccupancy()

	// Close the listener when context is done so Accept() returns an error.
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		nc, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil // normal shutdown
			default:
				l.Close()
				return fmt.Errorf("accept error: %w", err)
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, nc)
		}()
	}
}

// syncOccupancy mirrors the registry's slots into the occupancy gauge.
func (s *Server) syncOccupancy() {
	for _, st := range s.registry.Snapshot() {
		metrics.SetOccupied(st.Role, st.Occupied)
	}
}
