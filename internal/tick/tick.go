// Package tick drives a scheduler's tick handler from a time source.
//
// On target hardware the tick comes from a timer interrupt. On the host it
// comes from a Source: Timer paces ticks against the wall clock, Manual steps
// them explicitly for simulation and tests.
package tick

import "context"

// Handler receives ticks. *sched.Scheduler implements it.
type Handler interface {
	Tick()
}

// Source delivers ticks to h until ctx is cancelled.
type Source interface {
	Run(ctx context.Context, h Handler) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func()

func (f HandlerFunc) Tick() { f() }
