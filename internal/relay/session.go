package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/1ureka/terrabridge/internal/handshake"
	"github.com/1ureka/terrabridge/internal/metrics"
	"github.com/1ureka/terrabridge/internal/protocol"
	"github.com/1ureka/terrabridge/internal/transport"
	"github.com/1ureka/terrabridge/internal/util"
)

// DefaultReadTimeout bounds each steady-state frame read.
const DefaultReadTimeout = 6 * time.Second

// ErrSessionClosed is the teardown cause when a session is closed from
// outside rather than by a failing task.
var ErrSessionClosed = errors.New("relay: session closed")

// Session relays packets between one RoleA and one RoleB connection. Each
// side runs a reader loop and a writer loop; the first task to fail tears
// down both sides.
type Session struct {
	id          string
	conns       [2]*transport.Conn // indexed by handshake.Role
	tx          [2]*Transmitter    // indexed by Direction
	readTimeout time.Duration
	started     time.Time

	ctx       context.Context
	cancel    context.CancelCauseFunc
	closeOnce sync.Once
	done      chan struct{}
}

// NewSession pairs a (RoleA) with b (RoleB). Nothing moves until Run is
// called for each role.
func NewSession(parent context.Context, a, b *transport.Conn, capacity int, readTimeout time.Duration) *Session {
	ctx, cancel := context.WithCancelCause(parent)
	s := &Session{
		id:          uuid.NewString(),
		conns:       [2]*transport.Conn{a, b},
		tx:          [2]*Transmitter{NewTransmitter(AtoB, capacity), NewTransmitter(BtoA, capacity)},
		readTimeout: readTimeout,
		started:     time.Now(),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	util.Stats.AddSession()

	// A cancelled parent tears the session down like a failing task.
	context.AfterFunc(ctx, func() { s.fail(context.Cause(ctx)) })
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Transmitter returns the transmitter carrying dir.
func (s *Session) Transmitter(dir Direction) *Transmitter { return s.tx[dir] }

// Done is closed once the session is torn down: both transmitters and both
// sockets are closed by then.
func (s *Session) Done() <-chan struct{} { return s.done }

// Cause returns why the session was torn down, or nil while it is running.
func (s *Session) Cause() error { return context.Cause(s.ctx) }

// Close tears the session down from outside.
func (s *Session) Close() { s.fail(ErrSessionClosed) }

// Run drives role's side of the session: its reader loop feeds the peer's
// direction and its writer loop drains its own. Run blocks until both loops
// have exited and returns the session's teardown cause.
func (s *Session) Run(role handshake.Role) error {
	conn := s.conns[role]
	out := s.tx[From(role)]
	in := s.tx[From(role.Other())]

	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		err := s.readLoop(ctx, conn, out)
		s.fail(err)
		return err
	})
	g.Go(func() error {
		err := s.writeLoop(ctx, conn, in)
		s.fail(err)
		return err
	})
	_ = g.Wait()

	return s.Cause()
}

func (s *Session) readLoop(ctx context.Context, c *transport.Conn, out *Transmitter) error {
	for {
		pkt, err := c.ReadPacket(s.readTimeout)
		if err != nil {
			return err
		}
		if err := out.Send(ctx, pkt); err != nil {
			return err
		}
	}
}

func (s *Session) writeLoop(ctx context.Context, c *transport.Conn, in *Transmitter) error {
	w := c.Writer()
	for {
		pkt, err := in.Recv(ctx)
		if err != nil {
			return err
		}
		if err := w.WritePacket(pkt); err != nil {
			return err
		}
		util.LogTrace("[%08x] wrote %s", c.ID(), protocol.Describe(pkt))
	}
}

// fail closes both transmitters and both sockets so every blocked task
// returns, then records cause as the teardown reason if none is set yet.
func (s *Session) fail(cause error) {
	s.closeOnce.Do(func() {
		defer close(s.done)
		if cause == nil {
			cause = ErrSessionClosed
		}
		for _, t := range s.tx {
			t.Close()
		}
		for _, c := range s.conns {
			_ = c.Close()
		}
		s.cancel(cause)

		cause = context.Cause(s.ctx)
		util.LogWarning("Session %s terminated after %s: %v", s.id, time.Since(s.started).Truncate(time.Millisecond), cause)
		metrics.RecordTermination(Class(cause), time.Since(s.started))
	})
}

// Class names the error class of a teardown cause.
func Class(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, transport.ErrTimeout):
		return "timeout"
	case transport.IsIOError(err):
		return "io"
	case protocol.IsProtocolError(err):
		return "protocol"
	case errors.Is(err, ErrQueueClosed):
		return "queue"
	case errors.Is(err, context.Canceled), errors.Is(err, ErrSessionClosed):
		return "shutdown"
	default:
		return "other"
	}
}
