package tick

import (
	"context"
	"errors"
	"sync"
)

var ErrNotAttached = errors.New("tick: manual source has no handler")

// Manual delivers ticks only when stepped. It is deterministic and is what
// the simulator and tests use.
type Manual struct {
	mu sync.Mutex
	h  Handler
	n  uint64
}

// NewManual returns a Manual already attached to h. h may be nil; Run
// attaches a handler later.
func NewManual(h Handler) *Manual { return &Manual{h: h} }

// Run attaches h and blocks until ctx is cancelled.
func (m *Manual) Run(ctx context.Context, h Handler) error {
	m.mu.Lock()
	m.h = h
	m.mu.Unlock()

	<-ctx.Done()

	m.mu.Lock()
	m.h = nil
	m.mu.Unlock()
	return ctx.Err()
}

// Step delivers n ticks.
func (m *Manual) Step(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.h == nil {
		return ErrNotAttached
	}
	for i := 0; i < n; i++ {
		m.h.Tick()
		m.n++
	}
	return nil
}

// Steps returns the total ticks delivered.
func (m *Manual) Steps() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n
}
