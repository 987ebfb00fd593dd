package config

import (
	"reflect"
	"sort"
	"strings"

	logx "superloop/pkg/logx"
)

// Sections that take effect without a restart.
var liveSections = map[string]bool{"logging": true, "reports": true, "status": true}

// SummarizeChange returns the changed top-level sections, structured attrs
// for logging, and the subset of sections that need a restart (the schedule
// is fixed once the dispatcher runs).
func SummarizeChange(oldCfg, newCfg *Config) (changed []string, attrs []logx.Field, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.mode", newCfg.Scheduler.Mode),
			logx.String("scheduler.tick", strings.TrimSpace(newCfg.Scheduler.Tick)),
		)
	}
	if !reflect.DeepEqual(oldCfg.Tasks, newCfg.Tasks) {
		changed = append(changed, "tasks")
		attrs = append(attrs,
			logx.Int("tasks.count", len(newCfg.Tasks)),
			logx.Any("tasks.changed", changedTasks(oldCfg.Tasks, newCfg.Tasks)),
		)
	}
	if oldCfg.Reports != newCfg.Reports {
		changed = append(changed, "reports")
		attrs = append(attrs,
			logx.Float64("reports.rate_per_sec", newCfg.Reports.RatePerSec),
			logx.Int("reports.burst", newCfg.Reports.Burst),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}
	if oldCfg.Status != newCfg.Status {
		changed = append(changed, "status")
		attrs = append(attrs, logx.String("status.schedule", newCfg.Status.Schedule))
	}
	if !reflect.DeepEqual(oldCfg.Watchdog, newCfg.Watchdog) {
		changed = append(changed, "watchdog")
	}

	for _, s := range changed {
		if !liveSections[s] {
			restart = append(restart, s)
		}
	}
	return changed, attrs, restart
}

// changedTasks lists task names added, removed or modified, sorted.
func changedTasks(oldT, newT []TaskConfig) []string {
	byName := func(ts []TaskConfig) map[string]TaskConfig {
		m := make(map[string]TaskConfig, len(ts))
		for _, t := range ts {
			m[strings.TrimSpace(t.Name)] = t
		}
		return m
	}
	o, n := byName(oldT), byName(newT)

	var out []string
	for name, nt := range n {
		if ot, ok := o[name]; !ok || ot != nt {
			out = append(out, name)
		}
	}
	for name := range o {
		if _, ok := n[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
