package netstate

import (
	"context"
	"sync"
)

// Gate is the shared connectivity signal both sender tasks block on. It is
// a broadcast flag: Set wakes every waiter, Clear re-arms the gate. The
// network monitor owns the transitions; everything else only reads.
type Gate struct {
	mu sync.Mutex
	up bool
	ch chan struct{} // closed while up is false→true transition pending delivery
}

// NewGate returns a gate in the down state.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Up reports the current state without blocking.
func (g *Gate) Up() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.up
}

// Set marks connectivity established and wakes all waiters.
func (g *Gate) Set() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.up {
		g.up = true
		close(g.ch)
	}
}

// Clear marks connectivity lost. Waiters started after this block until the
// next Set.
func (g *Gate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.up {
		g.up = false
		g.ch = make(chan struct{})
	}
}

// Wait blocks until the gate is up or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if g.up {
			g.mu.Unlock()
			return nil
		}
		ch := g.ch
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
