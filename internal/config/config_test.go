package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"superloop/internal/sched"
)

const sampleYAML = `
logging:
  level: debug
  console: true
scheduler:
  mode: slot
  offsets: auto
  tick: 2ms
tasks:
  - { name: led, kind: blink, period: 500, slice: 1 }
  - { name: print, kind: heartbeat, period: 1000, slice: 2, offset: 7 }
reports:
  rate_per_sec: 2
  burst: 4
storage:
  driver: sqlite
  path: ./var/superloop.db
  busy_timeout: 2s
status:
  schedule: "@every 10s"
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	m := NewManager(writeFile(t, "superloop.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatalf("Get() did not return the committed config")
	}
	if len(cfg.Tasks) != 2 || cfg.Tasks[1].Offset != 7 || cfg.Tasks[0].Kind != "blink" {
		t.Fatalf("tasks = %+v", cfg.Tasks)
	}

	opt, err := SchedOptions(cfg)
	if err != nil {
		t.Fatalf("SchedOptions: %v", err)
	}
	if opt.Mode != sched.ModeSlot || opt.Offsets != sched.OffsetsAuto || opt.Consume != sched.ConsumeCoalesce {
		t.Fatalf("SchedOptions = %+v", opt)
	}
	if d, err := TickPeriod(cfg); err != nil || d != 2*time.Millisecond {
		t.Fatalf("TickPeriod = %v, %v", d, err)
	}
	sc, ok, err := StorageFrom(cfg)
	if err != nil || !ok || sc.Driver != "sqlite" || sc.BusyTimeout != 2*time.Second {
		t.Fatalf("StorageFrom = %+v, %v, %v", sc, ok, err)
	}
}

func TestLoadJSONRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	body := `{"tasks":[{"name":"a","kind":"blink","period":10,"slice":1,"prio":3}]}`
	_, err := NewManager(writeFile(t, "c.json", body)).Load()
	if err == nil || !strings.Contains(err.Error(), "prio") {
		t.Fatalf("Load error = %v, want unknown field prio", err)
	}

	_, err = NewManager(writeFile(t, "c.json", `{"tasks":[]} {"tasks":[]}`)).Parse()
	if err == nil {
		t.Fatalf("Parse accepted trailing data")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{Tasks: []TaskConfig{{Name: "a", Kind: "blink", Period: 10, Slice: 1}}}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "no tasks", mutate: func(c *Config) { c.Tasks = nil }, wantErr: "at least one task"},
		{name: "bad mode", mutate: func(c *Config) { c.Scheduler.Mode = "edf" }, wantErr: "scheduler.mode"},
		{name: "bad consume", mutate: func(c *Config) { c.Scheduler.Consume = "latest" }, wantErr: "scheduler.consume"},
		{name: "bad tick", mutate: func(c *Config) { c.Scheduler.Tick = "fast" }, wantErr: "scheduler.tick"},
		{name: "zero period", mutate: func(c *Config) { c.Tasks[0].Period = 0 }, wantErr: "period must be > 0"},
		{name: "slice over period", mutate: func(c *Config) { c.Tasks[0].Slice = 11 }, wantErr: "exceeds period"},
		{name: "offset at period", mutate: func(c *Config) { c.Tasks[0].Offset = 10 }, wantErr: "offset (10)"},
		{name: "unknown kind", mutate: func(c *Config) { c.Tasks[0].Kind = "uart" }, wantErr: "kind: unknown"},
		{name: "duplicate name", mutate: func(c *Config) { c.Tasks = append(c.Tasks, c.Tasks[0]) }, wantErr: "duplicate"},
		{name: "too many", mutate: func(c *Config) {
			c.Tasks = nil
			for i := 0; i <= sched.MaxTasks; i++ {
				c.Tasks = append(c.Tasks, TaskConfig{Name: string(rune('a' + i)), Kind: "blink", Period: 10})
			}
		}, wantErr: "capacity"},
		{name: "watchdog counts", mutate: func(c *Config) {
			for i := 1; i < sched.MaxTasks; i++ {
				c.Tasks = append(c.Tasks, TaskConfig{Name: string(rune('b' + i)), Kind: "blink", Period: 10})
			}
			c.Watchdog = &WatchdogConfig{Enabled: true}
		}, wantErr: "capacity"},
		{name: "watchdog name taken", mutate: func(c *Config) {
			c.Tasks[0].Name = "watchdog"
			c.Watchdog = &WatchdogConfig{Enabled: true}
		}, wantErr: `duplicate "watchdog"`},
		{name: "watchdog name free when disabled", mutate: func(c *Config) {
			c.Tasks[0].Name = "watchdog"
			c.Watchdog = &WatchdogConfig{Enabled: false}
		}},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
		{name: "bad cron", mutate: func(c *Config) { c.Status.Schedule = "every minute" }, wantErr: "status.schedule"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Storage = &StorageConfig{Driver: "sqlite"} }, wantErr: "storage.path"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage = &StorageConfig{Driver: "redis", Path: "x"} }, wantErr: "storage.driver"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base()
			tt.mutate(c)
			err := Validate(c)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{
		Logging: LoggingConfig{Level: "info"},
		Tasks:   []TaskConfig{{Name: "a", Kind: "blink", Period: 10}, {Name: "b", Kind: "blink", Period: 20}},
	}
	newCfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Tasks:   []TaskConfig{{Name: "a", Kind: "blink", Period: 15}, {Name: "c", Kind: "blink", Period: 20}},
		Reports: ReportsConfig{RatePerSec: 1},
	}

	changed, attrs, restart := SummarizeChange(oldCfg, newCfg)
	if !slices.Equal(changed, []string{"logging", "tasks", "reports"}) {
		t.Fatalf("changed = %v", changed)
	}
	if !slices.Equal(restart, []string{"tasks"}) {
		t.Fatalf("restart = %v", restart)
	}
	if len(attrs) == 0 {
		t.Fatalf("no attrs")
	}
	if got := changedTasks(oldCfg.Tasks, newCfg.Tasks); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("changedTasks = %v", got)
	}

	if c, _, r := SummarizeChange(oldCfg, oldCfg); len(c) != 0 || len(r) != 0 {
		t.Fatalf("identical configs reported changes: %v %v", c, r)
	}
}

func TestTicksFor(t *testing.T) {
	t.Parallel()

	ms := time.Millisecond
	tests := []struct {
		d, tick time.Duration
		want    uint32
	}{
		{d: 10 * time.Second, tick: ms, want: 10000},
		{d: 1500 * time.Microsecond, tick: ms, want: 1},
		{d: 0, tick: ms, want: 1},
		{d: time.Hour * 1000, tick: time.Nanosecond, want: 1<<31 - 1},
	}
	for _, tt := range tests {
		if got := TicksFor(tt.d, tt.tick); got != tt.want {
			t.Fatalf("TicksFor(%v, %v) = %d, want %d", tt.d, tt.tick, got, tt.want)
		}
	}
}

func TestWatchPublishesReload(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "superloop.yaml", sampleYAML)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	updated := strings.Replace(sampleYAML, "level: debug", "level: warn", 1)
	deadline := time.After(5 * time.Second)
	// Give the watcher time to register before the first write. Retries
	// stay slower than reloadDebounce, or each write would postpone the reload.
	time.Sleep(300 * time.Millisecond)
	tick := time.NewTicker(4 * reloadDebounce)
	defer tick.Stop()
	for {
		if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
			t.Fatalf("rewrite: %v", err)
		}
		select {
		case cfg := <-sub:
			if cfg.Logging.Level != "warn" {
				t.Fatalf("published level = %q, want warn", cfg.Logging.Level)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch returned %v", err)
			}
			return
		case <-deadline:
			t.Fatalf("no config published after rewrite")
		case <-tick.C:
		}
	}
}

func TestSetValidatorGuardsLoad(t *testing.T) {
	t.Parallel()

	errVeto := errors.New("veto")
	m := NewManager(writeFile(t, "superloop.yaml", sampleYAML))
	m.SetValidator(func(_ context.Context, cfg *Config) error {
		if cfg.Scheduler.Mode == "slot" {
			return errVeto
		}
		return nil
	})
	if _, err := m.Load(); !errors.Is(err, errVeto) {
		t.Fatalf("Load = %v, want veto", err)
	}
	if m.Get() != nil {
		t.Fatalf("rejected config was committed")
	}
}

func TestReloadRejectsInvalid(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "superloop.yaml", sampleYAML)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	// Unchanged content is not republished.
	if m.reload(context.Background()) {
		t.Fatalf("reload published unchanged config")
	}

	bad := strings.Replace(sampleYAML, "mode: slot", "mode: edf", 1)
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if m.reload(context.Background()) {
		t.Fatalf("reload published an invalid config")
	}
	if m.Get().Scheduler.Mode != "slot" {
		t.Fatalf("invalid config was committed")
	}
	select {
	case c := <-sub:
		t.Fatalf("subscriber received %+v", c)
	default:
	}
}
