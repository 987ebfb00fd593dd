package tasks

import (
	"sync/atomic"

	"superloop/internal/sched"
)

// Pin is a digital output line.
type Pin interface {
	Set(high bool)
	Get() bool
}

// MemPin is a Pin backed by memory. It counts level changes.
type MemPin struct {
	level   atomic.Bool
	toggles atomic.Uint64
}

func (p *MemPin) Set(high bool) {
	if p.level.Swap(high) != high {
		p.toggles.Add(1)
	}
}

func (p *MemPin) Get() bool       { return p.level.Load() }
func (p *MemPin) Toggles() uint64  { return p.toggles.Load() }

// Blink inverts a pin on every run.
type Blink struct {
	Pin Pin
}

func (b *Blink) Run(sched.Tick) {
	b.Pin.Set(!b.Pin.Get())
}
