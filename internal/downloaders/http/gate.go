package httpdl

import (
	"context"
	"sync"
)

// PauseGate suspends fetchers between read increments without closing
// their connections. The zero value is an open gate.
type PauseGate struct {
	mu     sync.Mutex
	resume chan struct{} // non-nil while paused
}

func NewPauseGate() *PauseGate {
	return &PauseGate{}
}

// Pause closes the gate. It reports false if the gate was already closed.
func (g *PauseGate) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resume != nil {
		return false
	}
	g.resume = make(chan struct{})
	return true
}

// Resume reopens the gate and wakes every waiter.
func (g *PauseGate) Resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resume == nil {
		return false
	}
	close(g.resume)
	g.resume = nil
	return true
}

func (g *PauseGate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resume != nil
}

// Wait blocks while the gate is closed. It returns ctx's error if the
// context ends first, including when the gate is open.
func (g *PauseGate) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	g.mu.Lock()
	ch := g.resume
	g.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
