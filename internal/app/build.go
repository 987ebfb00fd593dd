package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"superloop/internal/config"
	"superloop/internal/sched"
	"superloop/internal/tasks"

	logx "superloop/pkg/logx"
)

// Build wires a config into a scheduler: options, one registration per task
// (plus the watchdog task when enabled), then the schedule. Any error here is
// fatal to startup.
func Build(cfg *config.Config, env tasks.Env, rep sched.Reporter, log logx.Logger) (*sched.Scheduler, sched.Schedule, error) {
	opt, err := config.SchedOptions(cfg)
	if err != nil {
		return nil, sched.Schedule{}, err
	}
	opt.Reporter = rep
	opt.Log = log.With(logx.String("comp", "sched"))
	s := sched.New(opt)

	for _, tc := range cfg.Tasks {
		name := strings.TrimSpace(tc.Name)
		body, err := tasks.New(tc.Kind, name, tc.Cost, env)
		if err != nil {
			return nil, sched.Schedule{}, err
		}
		if _, err := s.Register(sched.TaskSpec{
			Name:   name,
			Task:   body,
			Period: tc.Period,
			Slice:  tc.Slice,
			Offset: tc.Offset,
		}); err != nil {
			return nil, sched.Schedule{}, err
		}
	}

	if wd := cfg.Watchdog; wd != nil && wd.Enabled {
		spec, err := watchdogSpec(cfg, env)
		if err != nil {
			return nil, sched.Schedule{}, err
		}
		if _, err := s.Register(spec); err != nil {
			return nil, sched.Schedule{}, err
		}
	}

	plan, err := s.Build()
	if err != nil {
		return nil, sched.Schedule{}, err
	}
	return s, plan, nil
}

// watchdogSpec derives the kick period. Without an explicit period it kicks
// at half of WATCHDOG_USEC, or once a second outside systemd.
func watchdogSpec(cfg *config.Config, env tasks.Env) (sched.TaskSpec, error) {
	tick, err := config.TickPeriod(cfg)
	if err != nil {
		return sched.TaskSpec{}, err
	}
	wd := cfg.Watchdog
	period := wd.Period
	if period == 0 {
		interval := time.Second
		if d, ok := tasks.WatchdogInterval(); ok {
			interval = d / 2
		}
		period = config.TicksFor(interval, tick)
	}
	slice := wd.Slice
	if slice == 0 {
		slice = 1
	}
	if slice > period {
		return sched.TaskSpec{}, fmt.Errorf("watchdog.slice (%d) exceeds period (%d)", slice, period)
	}

	w := tasks.NewWatchdog(env.Log.With(logx.String("task", tasks.WatchdogName)))
	if env.Notify != nil {
		w.Notify = env.Notify
	}
	return sched.TaskSpec{Name: tasks.WatchdogName, Task: w, Period: period, Slice: slice}, nil
}

// sleepSpend burns cost ticks of wall time. A task with a configured cost
// really occupies the dispatcher for that long in a live run.
func sleepSpend(tick time.Duration) func(int) {
	return func(n int) { time.Sleep(time.Duration(n) * tick) }
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		JSON:    cfg.Logging.JSON,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func taskOut(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
