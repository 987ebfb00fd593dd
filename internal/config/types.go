package config

// Config is the on-disk configuration (YAML or JSON).
//
// All durations are Go duration strings (e.g. "1ms", "10s").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Tasks     []TaskConfig    `json:"tasks"`

	Reports  ReportsConfig   `json:"reports,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Status   StatusConfig    `json:"status,omitempty"`
	Watchdog *WatchdogConfig `json:"watchdog,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the dispatch core and its tick source.
//
// Defaults (when fields are omitted/zero):
//   - mode: "pending" (also "phase", "slot")
//   - consume: "coalesce" (also "once"; pending mode only)
//   - offsets: "auto" (also "explicit")
//   - tick: "1ms"
//   - max_catch_up: 64
type SchedulerConfig struct {
	Mode              string `json:"mode,omitempty"`
	Consume           string `json:"consume,omitempty"`
	Offsets           string `json:"offsets,omitempty"`
	StrictUtilization bool   `json:"strict_utilization,omitempty"`
	Tick              string `json:"tick,omitempty"`
	MaxCatchUp        int    `json:"max_catch_up,omitempty"`
}

// TaskConfig declares one periodic task. Period, slice, offset and cost are
// in ticks.
type TaskConfig struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Period uint32 `json:"period"`
	Slice  uint32 `json:"slice"`
	Offset uint32 `json:"offset,omitempty"`
	// Cost is simulated execution time in ticks added after the body runs.
	Cost int `json:"cost,omitempty"`
}

// ReportsConfig limits how often overruns reach the log.
type ReportsConfig struct {
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Burst      int     `json:"burst,omitempty"`
}

// StorageConfig controls incident persistence.
//
// Example:
//
//	storage: { driver: sqlite, path: ./var/superloop.db }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Retain      int    `json:"retain,omitempty"`
}

// StatusConfig controls the periodic status line. Schedule is a cron spec
// ("@every 10s", "*/5 * * * *"); empty disables it.
type StatusConfig struct {
	Schedule string `json:"schedule,omitempty"`
}

// WatchdogConfig adds a systemd watchdog task when enabled. Period and slice
// are in ticks; a zero period is derived from WATCHDOG_USEC.
type WatchdogConfig struct {
	Enabled bool   `json:"enabled"`
	Period  uint32 `json:"period,omitempty"`
	Slice   uint32 `json:"slice,omitempty"`
}
