package transport

import (
	"sync/atomic"
	"time"
)

// Parked watches a connection that is waiting for its peer. It peeks one
// byte past whatever is already buffered, so that a client hanging up is
// noticed without consuming anything the relay reader will later need.
// Watching stops once the read buffer is full of early data.
type Parked struct {
	c      *Conn
	lost   chan error
	exited chan struct{}
	waking atomic.Bool
}

// Park starts watching c. The caller must not read from c until Unpark
// returns.
func (c *Conn) Park() *Parked {
	p := &Parked{
		c:      c,
		lost:   make(chan error, 1),
		exited: make(chan struct{}),
	}

	_ = c.nc.SetReadDeadline(time.Time{})
	go func() {
		defer close(p.exited)
		for n := 1; n <= c.r.Size(); n = c.r.Buffered() + 1 {
			if _, err := c.r.Peek(n); err != nil {
				if !p.waking.Load() {
					p.lost <- Classify(err)
				}
				return
			}
		}
	}()

	return p
}

// Lost delivers the error that ended the connection while parked. Nothing is
// delivered once the watcher is unparked.
func (p *Parked) Lost() <-chan error {
	return p.lost
}

// Unpark stops the watcher and hands the read half back to the caller.
// Bytes the client sent while parked stay buffered.
func (p *Parked) Unpark() error {
	p.waking.Store(true)
	if err := p.c.nc.SetReadDeadline(time.Now()); err != nil {
		// Deadlines only fail on a closed socket, which also ends the peek.
		<-p.exited
		return Classify(err)
	}
	<-p.exited
	return p.c.nc.SetReadDeadline(time.Time{})
}
