package tasks

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"superloop/internal/sched"

	logx "superloop/pkg/logx"
)

const (
	KindBlink     = "blink"
	KindHeartbeat = "heartbeat"
	KindChecksum  = "checksum"
	KindWatchdog  = "watchdog"
	KindLoad      = "load"
)

var ErrUnknownKind = errors.New("tasks: unknown kind")

// Kinds lists the task kinds New accepts.
func Kinds() []string {
	return []string{KindBlink, KindHeartbeat, KindChecksum, KindWatchdog, KindLoad}
}

// Env carries what task bodies may need from the host.
type Env struct {
	Out    io.Writer
	Log    logx.Logger
	Spend  func(ticks int)
	Notify Notifier
	// Region is what checksum tasks verify. Nil gets a 4 KiB pattern.
	Region []byte
	// Pins are created on first use and shared by name.
	Pins map[string]*MemPin
}

// New builds the task body for kind. A positive cost wraps it in a Load.
func New(kind, name string, cost int, env Env) (sched.Task, error) {
	log := env.Log.With(logx.String("task", name))

	var t sched.Task
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindBlink:
		t = &Blink{Pin: env.pin(name)}
	case KindHeartbeat:
		out := env.Out
		if out == nil {
			out = io.Discard
		}
		t = &Heartbeat{W: out, Prefix: name}
	case KindChecksum:
		region := env.Region
		if region == nil {
			region = pattern(4096)
		}
		t = &Checksum{Region: region, Log: log}
	case KindWatchdog:
		w := NewWatchdog(log)
		if env.Notify != nil {
			w.Notify = env.Notify
		}
		t = w
	case KindLoad:
		// Pure cost, no body.
		if cost <= 0 {
			return nil, fmt.Errorf("tasks: %q: load needs cost > 0", name)
		}
		return &Load{Cost: cost, Spend: env.Spend}, nil
	default:
		return nil, fmt.Errorf("%w: %q (task %q)", ErrUnknownKind, kind, name)
	}
	return WithCost(t, cost, env.Spend), nil
}

func (e Env) pin(name string) Pin {
	if e.Pins == nil {
		return &MemPin{}
	}
	p, ok := e.Pins[name]
	if !ok {
		p = &MemPin{}
		e.Pins[name] = p
	}
	return p
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 31)
	}
	return b
}
