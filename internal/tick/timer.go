package tick

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	logx "superloop/pkg/logx"
)

// DefaultMaxCatchUp bounds how many missed ticks one wakeup may deliver.
const DefaultMaxCatchUp = 64

var ErrInvalidPeriod = errors.New("tick: period must be > 0")

// Timer paces ticks against the wall clock.
//
// A late wakeup delivers the ticks it missed so the tick count tracks elapsed
// time. At most MaxCatchUp ticks are delivered per wakeup; any excess is
// dropped and counted.
type Timer struct {
	Period     time.Duration
	MaxCatchUp int
	Log        logx.Logger

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewTimer returns a Timer with the default catch-up bound.
func NewTimer(period time.Duration, log logx.Logger) *Timer {
	return &Timer{Period: period, MaxCatchUp: DefaultMaxCatchUp, Log: log}
}

func (t *Timer) Delivered() uint64 { return t.delivered.Load() }
func (t *Timer) Dropped() uint64   { return t.dropped.Load() }

func (t *Timer) Run(ctx context.Context, h Handler) error {
	if t.Period <= 0 {
		return ErrInvalidPeriod
	}
	log := t.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	maxCatchUp := t.MaxCatchUp
	if maxCatchUp <= 0 {
		maxCatchUp = DefaultMaxCatchUp
	}

	tk := time.NewTicker(t.Period)
	defer tk.Stop()

	start := time.Now()
	var accounted uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tk.C:
			deliver, drop := catchUp(now.Sub(start), t.Period, accounted, maxCatchUp)
			for i := uint64(0); i < deliver; i++ {
				h.Tick()
			}
			accounted += deliver + drop
			t.delivered.Add(deliver)
			if drop > 0 {
				t.dropped.Add(drop)
				log.Warn("tick source fell behind; ticks dropped",
					logx.Uint64("dropped", drop),
					logx.Uint64("dropped_total", t.dropped.Load()),
					logx.Duration("period", t.Period),
				)
			}
		}
	}
}

// catchUp returns how many ticks to deliver now and how many to drop, given
// the elapsed time since start and the ticks already accounted for.
func catchUp(elapsed, period time.Duration, accounted uint64, maxCatchUp int) (deliver, drop uint64) {
	if elapsed <= 0 || period <= 0 {
		return 0, 0
	}
	expected := uint64(elapsed / period)
	if expected <= accounted {
		return 0, 0
	}
	owed := expected - accounted
	limit := uint64(maxCatchUp)
	if owed <= limit {
		return owed, 0
	}
	return limit, owed - limit
}
