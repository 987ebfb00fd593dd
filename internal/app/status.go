package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"

	"superloop/internal/eventbus"
	"superloop/internal/sched"

	logx "superloop/pkg/logx"
)

// statusReporter logs a one-line scheduler summary on a cron schedule.
type statusReporter struct {
	a *App

	mu    sync.Mutex
	cron  *cron.Cron
	entry cron.EntryID
	spec  string
}

func newStatusReporter(a *App) *statusReporter {
	return &statusReporter{a: a, cron: cron.New()}
}

// Start schedules the status line and starts the cron runner. An empty spec
// leaves it idle.
func (r *statusReporter) Start(spec string) error {
	if err := r.Reschedule(spec); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Reschedule swaps the cron entry. The old entry stays if spec is invalid.
func (r *statusReporter) Reschedule(spec string) error {
	spec = strings.TrimSpace(spec)
	r.mu.Lock()
	defer r.mu.Unlock()
	if spec == r.spec {
		return nil
	}
	var id cron.EntryID
	if spec != "" {
		var err error
		id, err = r.cron.AddFunc(spec, r.emit)
		if err != nil {
			return fmt.Errorf("status.schedule %q: %w", spec, err)
		}
	}
	if r.entry != 0 {
		r.cron.Remove(r.entry)
	}
	r.entry, r.spec = id, spec
	return nil
}

// Stop stops the runner and waits for a running emit up to ctx.
func (r *statusReporter) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *statusReporter) emit() {
	snap := r.a.sched.Snapshot()
	r.a.bus.Publish(eventbus.Event{Type: eventbus.TypeStatus, Data: snap})

	sup := r.a.sup.Snapshot()
	r.a.log.Info(StatusLine(snap),
		logx.Int64("goroutines", sup.Active),
		logx.Uint64("ticks_dropped", r.a.timer.Dropped()),
		logx.Uint64("bus_dropped", r.a.bus.Dropped()),
		logx.Uint64("overrun_logs_suppressed", r.a.logRep.Suppressed()),
	)
}

// StatusLine renders a snapshot for humans:
//
//	tick 1,204,311 | slot | util 42.0% | runs 9,871 | overruns 3 (blink 2, crc 1)
func StatusLine(s sched.Snapshot) string {
	var runs, overruns uint64
	var worst []string
	for _, t := range s.Tasks {
		runs += t.Runs
		overruns += t.Overruns
		if t.Overruns > 0 {
			worst = append(worst, fmt.Sprintf("%s %s", t.Name, humanize.Comma(int64(t.Overruns))))
		}
	}
	line := fmt.Sprintf("tick %s | %s | util %.1f%% | runs %s | overruns %s",
		humanize.Comma(int64(s.Now)), s.Mode, s.Utilization*100,
		humanize.Comma(int64(runs)), humanize.Comma(int64(overruns)))
	if len(worst) > 0 {
		line += " (" + strings.Join(worst, ", ") + ")"
	}
	return line
}
