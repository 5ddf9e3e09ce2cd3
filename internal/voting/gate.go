package voting

import (
	"sync"
	"time"
)

// ListenGate accumulates actual playback time for the current song and
// unlocks voting once a threshold is met. It is driven purely by
// play/pause transitions against the wall clock: transport position is
// never read, so seeking can neither satisfy nor rewind the gate.
type ListenGate struct {
	mu          sync.Mutex
	min         time.Duration
	accumulated time.Duration
	running     bool
	startedAt   time.Time
	now         func() time.Time
}

func NewListenGate(min time.Duration) *ListenGate {
	return &ListenGate{
		min: min,
		now: time.Now,
	}
}

// newListenGateWithClock injects the clock for tests.
func newListenGateWithClock(min time.Duration, now func() time.Time) *ListenGate {
	return &ListenGate{min: min, now: now}
}

// Start begins accumulating. Idempotent while already running.
func (g *ListenGate) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return
	}
	g.running = true
	g.startedAt = g.now()
}

// Stop halts accumulation without resetting it. Idempotent.
func (g *ListenGate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return
	}
	g.accumulated += g.now().Sub(g.startedAt)
	g.running = false
}

// Reset zeroes the accumulator. Called exactly when a new song loads.
func (g *ListenGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.accumulated = 0
	if g.running {
		g.startedAt = g.now()
	}
}

// Elapsed returns the accumulated playback time so far.
func (g *ListenGate) Elapsed() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.elapsedLocked()
}

func (g *ListenGate) elapsedLocked() time.Duration {
	if g.running {
		return g.accumulated + g.now().Sub(g.startedAt)
	}
	return g.accumulated
}

// CanVote reports whether the threshold has been met. Exactly reaching
// the threshold counts.
func (g *ListenGate) CanVote() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.elapsedLocked() >= g.min
}

// Remaining returns how much listening is still required, floored at 0.
func (g *ListenGate) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	rem := g.min - g.elapsedLocked()
	if rem < 0 {
		return 0
	}
	return rem
}

func (g *ListenGate) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
