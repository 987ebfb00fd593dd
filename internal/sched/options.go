package sched

import (
	"fmt"
	"strings"

	logx "superloop/pkg/logx"
)

// Mode selects how due state is tracked between the tick handler and the
// dispatcher.
type Mode int

const (
	// ModePending: the tick handler counts owed runs per task.
	ModePending Mode = iota
	// ModePhase: the dispatcher compares now against each task's next_due.
	ModePhase
	// ModeSlot: the dispatcher replays a static slot table.
	ModeSlot
)

func (m Mode) String() string {
	switch m {
	case ModePending:
		return "pending"
	case ModePhase:
		return "phase"
	case ModeSlot:
		return "slot"
	default:
		return "unknown"
	}
}

// ConsumePolicy decides what the dispatcher does with a backlog in
// ModePending.
type ConsumePolicy int

const (
	// ConsumeCoalesce runs the body once per owed run, back to back.
	ConsumeCoalesce ConsumePolicy = iota
	// ConsumeOnce runs the body once and drops the rest of the backlog.
	ConsumeOnce
)

func (p ConsumePolicy) String() string {
	switch p {
	case ConsumeCoalesce:
		return "coalesce"
	case ConsumeOnce:
		return "once"
	default:
		return "unknown"
	}
}

// Options configures a Scheduler.
type Options struct {
	Mode    Mode
	Consume ConsumePolicy
	Offsets OffsetPolicy
	// StrictUtilization makes Build fail on a utilization above 1.
	StrictUtilization bool

	Reporter Reporter
	Log      logx.Logger
}

func (o Options) withDefaults() Options {
	if o.Mode < ModePending || o.Mode > ModeSlot {
		o.Mode = ModePending
	}
	if o.Consume != ConsumeCoalesce && o.Consume != ConsumeOnce {
		o.Consume = ConsumeCoalesce
	}
	if o.Offsets != OffsetsAuto && o.Offsets != OffsetsExplicit {
		o.Offsets = OffsetsAuto
	}
	if o.Reporter == nil {
		o.Reporter = nopReporter{}
	}
	if o.Log.IsZero() {
		o.Log = logx.Nop()
	}
	return o
}

// ParseMode maps a config name to a Mode. Empty means ModePending.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending":
		return ModePending, nil
	case "phase":
		return ModePhase, nil
	case "slot", "slots":
		return ModeSlot, nil
	default:
		return 0, fmt.Errorf("sched: unknown mode %q", s)
	}
}

// ParseConsume maps a config name to a ConsumePolicy. Empty means coalesce.
func ParseConsume(s string) (ConsumePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "coalesce":
		return ConsumeCoalesce, nil
	case "once":
		return ConsumeOnce, nil
	default:
		return 0, fmt.Errorf("sched: unknown consume policy %q", s)
	}
}

// ParseOffsetPolicy maps a config name to an OffsetPolicy. Empty means auto.
func ParseOffsetPolicy(s string) (OffsetPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return OffsetsAuto, nil
	case "explicit":
		return OffsetsExplicit, nil
	default:
		return 0, fmt.Errorf("sched: unknown offset policy %q", s)
	}
}
