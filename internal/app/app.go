// Package app wires a superloop process together: config, logging, the
// scheduler and its tick source, overrun sinks, incident storage, and the
// status reporter.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"

	"superloop/internal/config"
	"superloop/internal/eventbus"
	"superloop/internal/report"
	"superloop/internal/runtime/supervisor"
	"superloop/internal/sched"
	"superloop/internal/storage"
	"superloop/internal/tasks"
	"superloop/internal/tick"

	logx "superloop/pkg/logx"
)

type App struct {
	cfgm  *config.Manager
	runID string

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	sched  *sched.Scheduler
	plan   sched.Schedule
	timer  *tick.Timer
	logRep *report.Log
	status *statusReporter

	sup *supervisor.Supervisor
}

// Options tune New. The zero value writes task output to stdout.
type Options struct {
	// TaskOut receives heartbeat lines.
	TaskOut io.Writer
	// Notify overrides systemd notification (tests).
	Notify tasks.Notifier
}

// New loads the config and builds everything up to a ready schedule.
// Registration or build errors are returned and nothing is started.
func New(cfgPath string, opt Options) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfgm.SetValidator(checkReload)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logConfig(cfg))
	runID := uuid.NewString()
	log = log.With(logx.String("run", runID[:8]))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := config.StorageFrom(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	tickPeriod, err := config.TickPeriod(cfg)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	logRep := report.NewLog(log, rateOr(cfg.Reports.RatePerSec, report.DefaultRatePerSec), burstOr(cfg.Reports.Burst, report.DefaultBurst))
	rep := report.NewFanout(logRep, report.Bus{B: bus})

	out := opt.TaskOut
	if out == nil {
		out = os.Stdout
	}
	env := tasks.Env{
		Out:    taskOut(out),
		Log:    log,
		Spend:  sleepSpend(tickPeriod),
		Notify: opt.Notify,
		Pins:   map[string]*tasks.MemPin{},
	}
	s, plan, err := Build(cfg, env, rep, log)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	timer := tick.NewTimer(tickPeriod, log.With(logx.String("comp", "tick")))
	if cfg.Scheduler.MaxCatchUp > 0 {
		timer.MaxCatchUp = cfg.Scheduler.MaxCatchUp
	}

	a := &App{
		cfgm:   cfgm,
		runID:  runID,
		log:    log.With(logx.String("comp", "app")),
		logs:   logSvc,
		bus:    bus,
		store:  store,
		sched:  s,
		plan:   plan,
		timer:  timer,
		logRep: logRep,
	}
	a.status = newStatusReporter(a)
	return a, nil
}

func (a *App) Scheduler() *sched.Scheduler { return a.sched }
func (a *App) RunID() string               { return a.runID }

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start launches the tick source, the dispatcher and the harness loops.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	// Dispatcher first so the first ticks find it waiting.
	a.sup.Go("sched.dispatch", a.sched.Run)
	a.sup.Go("tick.source", func(c context.Context) error { return a.timer.Run(c, a.sched) })

	if a.store != nil {
		events, unsub := a.bus.Subscribe(256)
		a.sup.Go0("incidents.record", func(c context.Context) {
			defer unsub()
			recordIncidents(c, events, a.store, a.runID, a.log.With(logx.String("comp", "incidents")))
		})
	}

	if err := a.status.Start(a.cfgm.Get().Status.Schedule); err != nil {
		a.sup.Cancel()
		return err
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify READY failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify READY sent")
	}

	a.log.Info("superloop started",
		logx.String("mode", a.sched.Mode().String()),
		logx.Int("tasks", a.sched.Len()),
		logx.Uint64("hyperperiod", uint64(a.plan.Hyperperiod)),
		logx.Float64("utilization", a.plan.Utilization()),
		logx.Duration("tick", a.timer.Period),
	)
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the latest config matters.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}

			sections, attrs, restart := config.SummarizeChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sections) == 0 {
				a.log.Info("config reloaded (no changes)")
				continue
			}

			a.logs.Apply(logConfig(newCfg))
			a.logRep.SetLimit(rateOr(newCfg.Reports.RatePerSec, report.DefaultRatePerSec), burstOr(newCfg.Reports.Burst, report.DefaultBurst))
			if err := a.status.Reschedule(newCfg.Status.Schedule); err != nil {
				a.log.Warn("status schedule rejected; keeping previous", logx.Err(err))
			}
			if len(restart) > 0 {
				a.log.Warn("config sections changed that need a restart; running schedule kept",
					logx.String("sections", strings.Join(restart, ",")))
			}

			a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfig, Data: sections})
			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			a.log.Info("config reloaded", fields...)
		}
	}
}

// Stop shuts down in order: status reporter, supervised goroutines, storage,
// then logging. Each step is bounded by ctx.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		closeStore(a.store)
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.sup.Cancel()

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()
		if err := fn(stepCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("status", time.Second, func(c context.Context) error { return a.status.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped", logx.Uint64("ticks", uint64(a.sched.Now())), logx.Uint64("dropped_ticks", a.timer.Dropped()))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// checkReload rejects a config that validates but could not be built into a
// schedule, so a bad edit is never committed as the current config.
func checkReload(_ context.Context, cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if _, err := MakePlan(cfg); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	return nil
}

func closeStore(st storage.Store) {
	if st != nil {
		_ = st.Close()
	}
}

func rateOr(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func burstOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
