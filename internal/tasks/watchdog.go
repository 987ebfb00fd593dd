package tasks

import (
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"superloop/internal/sched"

	logx "superloop/pkg/logx"
)

// Notifier sends a service manager notification. daemon.SdNotify satisfies it.
type Notifier func(unsetEnvironment bool, state string) (bool, error)

// WatchdogName is the task name the watchdog registers under. User tasks
// may not take it while the watchdog is enabled.
const WatchdogName = "watchdog"

// Watchdog kicks the systemd watchdog. If the dispatcher stalls, the kicks
// stop and the service manager restarts the process.
type Watchdog struct {
	Notify Notifier
	Log    logx.Logger

	kicks  atomic.Uint64
	failed atomic.Uint64
}

// NewWatchdog returns a Watchdog that notifies systemd.
func NewWatchdog(log logx.Logger) *Watchdog {
	return &Watchdog{Notify: daemon.SdNotify, Log: log}
}

func (w *Watchdog) Run(now sched.Tick) {
	notify := w.Notify
	if notify == nil {
		notify = daemon.SdNotify
	}
	sent, err := notify(false, daemon.SdNotifyWatchdog)
	if err != nil {
		// Only the first failure is logged; a broken socket stays broken.
		if w.failed.Add(1) == 1 {
			w.Log.Warn("watchdog notify failed", logx.Uint64("tick", uint64(now)), logx.Err(err))
		}
		return
	}
	if sent {
		w.kicks.Add(1)
	}
}

// Kicks returns how many notifications reached the service manager.
func (w *Watchdog) Kicks() uint64 { return w.kicks.Load() }

// WatchdogInterval returns the interval systemd expects kicks within
// (WATCHDOG_USEC). ok is false outside a watchdog-enabled unit.
func WatchdogInterval() (d time.Duration, ok bool) {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
