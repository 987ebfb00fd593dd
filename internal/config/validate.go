package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"superloop/internal/sched"
	"superloop/internal/storage"
	"superloop/internal/tasks"

	logx "superloop/pkg/logx"
)

// DefaultTick is the tick period when scheduler.tick is omitted.
const DefaultTick = time.Millisecond

// Validate checks everything that can be checked without building the
// schedule. Errors name the offending field.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if _, err := logx.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if _, err := sched.ParseMode(cfg.Scheduler.Mode); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.mode: %w", err))
	}
	if _, err := sched.ParseConsume(cfg.Scheduler.Consume); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.consume: %w", err))
	}
	if _, err := sched.ParseOffsetPolicy(cfg.Scheduler.Offsets); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.offsets: %w", err))
	}
	if _, err := ParseDurationField("scheduler.tick", cfg.Scheduler.Tick); err != nil {
		errs = append(errs, err)
	}
	if cfg.Scheduler.MaxCatchUp < 0 {
		errs = append(errs, errors.New("scheduler.max_catch_up must be >= 0"))
	}

	if len(cfg.Tasks) == 0 {
		errs = append(errs, errors.New("tasks: at least one task is required"))
	}
	n := len(cfg.Tasks)
	if cfg.Watchdog != nil && cfg.Watchdog.Enabled {
		n++
	}
	if n > sched.MaxTasks {
		errs = append(errs, fmt.Errorf("tasks: %d tasks configured, capacity is %d", n, sched.MaxTasks))
	}
	seen := make(map[string]bool, len(cfg.Tasks)+1)
	if cfg.Watchdog != nil && cfg.Watchdog.Enabled {
		seen[tasks.WatchdogName] = true
	}
	for i, tc := range cfg.Tasks {
		errs = append(errs, validateTask(i, tc, seen)...)
	}

	if cfg.Reports.RatePerSec < 0 {
		errs = append(errs, errors.New("reports.rate_per_sec must be >= 0"))
	}
	if cfg.Reports.Burst < 0 {
		errs = append(errs, errors.New("reports.burst must be >= 0"))
	}
	if _, _, err := StorageFrom(cfg); err != nil {
		errs = append(errs, err)
	}
	if spec := strings.TrimSpace(cfg.Status.Schedule); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("status.schedule: invalid %q: %w", spec, err))
		}
	}
	return errors.Join(errs...)
}

func validateTask(i int, tc TaskConfig, seen map[string]bool) []error {
	var errs []error
	field := fmt.Sprintf("tasks[%d]", i)
	name := strings.TrimSpace(tc.Name)
	if name == "" {
		errs = append(errs, fmt.Errorf("%s.name is required", field))
	} else if seen[name] {
		errs = append(errs, fmt.Errorf("%s.name: duplicate %q", field, name))
	}
	seen[name] = true

	known := false
	for _, k := range tasks.Kinds() {
		if strings.EqualFold(strings.TrimSpace(tc.Kind), k) {
			known = true
		}
	}
	if !known {
		errs = append(errs, fmt.Errorf("%s.kind: unknown %q (want one of %s)", field, tc.Kind, strings.Join(tasks.Kinds(), ", ")))
	}
	if tc.Period == 0 {
		errs = append(errs, fmt.Errorf("%s.period must be > 0", field))
	}
	if tc.Slice > tc.Period {
		errs = append(errs, fmt.Errorf("%s.slice (%d) exceeds period (%d)", field, tc.Slice, tc.Period))
	}
	if tc.Period > 0 && tc.Offset >= tc.Period {
		errs = append(errs, fmt.Errorf("%s.offset (%d) must be < period (%d)", field, tc.Offset, tc.Period))
	}
	if tc.Cost < 0 {
		errs = append(errs, fmt.Errorf("%s.cost must be >= 0", field))
	}
	return errs
}

// SchedOptions maps the scheduler section onto sched.Options (without
// reporter or logger).
func SchedOptions(cfg *Config) (sched.Options, error) {
	mode, err := sched.ParseMode(cfg.Scheduler.Mode)
	if err != nil {
		return sched.Options{}, err
	}
	consume, err := sched.ParseConsume(cfg.Scheduler.Consume)
	if err != nil {
		return sched.Options{}, err
	}
	offsets, err := sched.ParseOffsetPolicy(cfg.Scheduler.Offsets)
	if err != nil {
		return sched.Options{}, err
	}
	return sched.Options{
		Mode:              mode,
		Consume:           consume,
		Offsets:           offsets,
		StrictUtilization: cfg.Scheduler.StrictUtilization,
	}, nil
}

// TickPeriod returns scheduler.tick or DefaultTick.
func TickPeriod(cfg *Config) (time.Duration, error) {
	return ParseDurationOrDefault("scheduler.tick", cfg.Scheduler.Tick, DefaultTick)
}

// StorageFrom maps the storage section. ok is false when storage is disabled.
func StorageFrom(cfg *Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	if sc.Retain < 0 {
		return storage.Config{}, false, errors.New("storage.retain must be >= 0")
	}

	switch driver {
	case "file":
		if path == "" {
			return storage.Config{}, false, errors.New("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: "file", Path: path, Retain: sc.Retain}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, errors.New("storage.path is required when storage.driver=sqlite")
		}
		busy, err := ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy, Retain: sc.Retain}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
