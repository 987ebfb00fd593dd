package app

import (
	"errors"
	"io"
	"math"
	"sync"

	"superloop/internal/config"
	"superloop/internal/report"
	"superloop/internal/sched"
	"superloop/internal/tasks"
	"superloop/internal/tick"

	logx "superloop/pkg/logx"
)

// MaxRecorded caps how many reports a simulation keeps.
const MaxRecorded = 1000

var ErrSimTicks = errors.New("simulate: ticks must be in 1..2^31-1")

// SimResult is what a simulation observed.
type SimResult struct {
	Schedule    sched.Schedule
	Snapshot    sched.Snapshot
	Overruns    []sched.SliceOverrun
	Saturations []sched.PendingSaturation
	// Truncated is set when more than MaxRecorded reports occurred.
	Truncated bool
}

type recorder struct {
	mu  sync.Mutex
	res *SimResult
}

func (r *recorder) SliceOverrun(o sched.SliceOverrun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.res.Overruns)+len(r.res.Saturations) >= MaxRecorded {
		r.res.Truncated = true
		return
	}
	r.res.Overruns = append(r.res.Overruns, o)
}

func (r *recorder) PendingSaturated(p sched.PendingSaturation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.res.Overruns)+len(r.res.Saturations) >= MaxRecorded {
		r.res.Truncated = true
		return
	}
	r.res.Saturations = append(r.res.Saturations, p)
}

// Simulate runs cfg against virtual time for the given number of ticks. Ticks
// are stepped one at a time with a dispatch pass after each; a task's cost
// advances virtual time while it runs, so overruns reproduce exactly.
// Heartbeat output goes to out.
func Simulate(cfg *config.Config, ticks int64, out io.Writer, log logx.Logger) (SimResult, error) {
	if ticks <= 0 || ticks > math.MaxInt32 {
		return SimResult{}, ErrSimTicks
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	var res SimResult
	rec := &recorder{res: &res}

	var s *sched.Scheduler
	env := tasks.Env{
		Out: taskOut(out),
		Log: log,
		Spend: func(n int) {
			for i := 0; i < n; i++ {
				s.Tick()
			}
		},
		Notify: func(bool, string) (bool, error) { return false, nil },
		Pins:   map[string]*tasks.MemPin{},
	}
	rep := report.NewFanout(rec, report.NewLog(log, report.DefaultRatePerSec, report.DefaultBurst))

	s, sc, err := Build(cfg, env, rep, log)
	if err != nil {
		return SimResult{}, err
	}
	res.Schedule = sc

	m := tick.NewManual(s)
	end := sched.Tick(ticks)
	for sched.Since(s.Now(), end) < 0 {
		s.Poll()
		if err := m.Step(1); err != nil {
			return SimResult{}, err
		}
	}
	s.Poll()

	res.Snapshot = s.Snapshot()
	return res, nil
}
