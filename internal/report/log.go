package report

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"superloop/internal/sched"

	logx "superloop/pkg/logx"
)

// Default limits for Log: a sustained overrun storm costs at most a few lines
// per second.
const (
	DefaultRatePerSec = 5
	DefaultBurst      = 10
)

// Log writes overruns and saturation as warnings, rate limited. Lines held
// back by the limiter are counted and reported with the next line that gets
// through.
type Log struct {
	log logx.Logger

	mu         sync.Mutex
	lim        *rate.Limiter
	suppressed atomic.Uint64
}

// NewLog returns a Log limited to perSec lines per second with the given burst.
// perSec <= 0 disables limiting.
func NewLog(log logx.Logger, perSec float64, burst int) *Log {
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Log{log: log.With(logx.String("comp", "sched"))}
	l.SetLimit(perSec, burst)
	return l
}

// SetLimit changes the rate at runtime (config reload).
func (l *Log) SetLimit(perSec float64, burst int) {
	var lim *rate.Limiter
	if perSec > 0 {
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(perSec), burst)
	}
	l.mu.Lock()
	l.lim = lim
	l.mu.Unlock()
}

// Suppressed returns how many lines are waiting to be summarized.
func (l *Log) Suppressed() uint64 { return l.suppressed.Load() }

func (l *Log) allow() (ok bool, held uint64) {
	l.mu.Lock()
	lim := l.lim
	l.mu.Unlock()
	if lim != nil && !lim.Allow() {
		l.suppressed.Add(1)
		return false, 0
	}
	return true, l.suppressed.Swap(0)
}

func (l *Log) SliceOverrun(o sched.SliceOverrun) {
	ok, held := l.allow()
	if !ok {
		return
	}
	fields := []logx.Field{
		logx.String("task", o.Name),
		logx.Int("handle", int(o.Task)),
		logx.Uint64("start", uint64(o.Start)),
		logx.Uint64("measured", uint64(o.Measured)),
		logx.Uint64("budget", uint64(o.Budget)),
	}
	if held > 0 {
		fields = append(fields, logx.Uint64("suppressed", held))
	}
	l.log.Warn("slice overrun", fields...)
}

func (l *Log) PendingSaturated(p sched.PendingSaturation) {
	ok, held := l.allow()
	if !ok {
		return
	}
	fields := []logx.Field{
		logx.String("task", p.Name),
		logx.Int("handle", int(p.Task)),
		logx.Uint64("at", uint64(p.At)),
	}
	if held > 0 {
		fields = append(fields, logx.Uint64("suppressed", held))
	}
	l.log.Warn("pending count saturated", fields...)
}
