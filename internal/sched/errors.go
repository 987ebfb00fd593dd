package sched

import (
	"errors"
	"fmt"
)

// Registration errors.
var (
	ErrCapacityExceeded = errors.New("task table full")
	ErrInvalidPeriod    = errors.New("period must be > 0")
	ErrInvalidTask      = errors.New("task body required")
	ErrInvalidSlice     = errors.New("slice budget exceeds period")
	ErrInvalidOffset    = errors.New("phase offset must be < period")
	ErrRunning          = errors.New("scheduler already running")
)

// Build errors.
var (
	ErrNoTasks             = errors.New("no tasks registered")
	ErrHyperperiodOverflow = errors.New("hyperperiod overflows tick range")
	ErrSlotTableFull       = errors.New("slot table full")
	ErrOverUtilized        = errors.New("task set over-utilized")
	ErrNotBuilt            = errors.New("schedule not built")
)

// RegistrationError is returned by Register. Treat it as fatal to startup:
// an unscheduled task is a configuration bug.
type RegistrationError struct {
	Name string
	Err  error
}

func (e *RegistrationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("register task: %v", e.Err)
	}
	return fmt.Sprintf("register task %q: %v", e.Name, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// BuildError is returned by schedule construction. The dispatcher must not
// start with a schedule that failed to build.
type BuildError struct {
	Err error
	// Task is the offending task index, or -1 when the error is not tied to one.
	Task int
	// Value carries the quantity that failed the check (running LCM, slot
	// count or busy ticks), 0 when not applicable.
	Value uint64
}

func (e *BuildError) Error() string {
	switch {
	case e.Task >= 0 && e.Value > 0:
		return fmt.Sprintf("build schedule: %v (task %d, value %d)", e.Err, e.Task, e.Value)
	case e.Task >= 0:
		return fmt.Sprintf("build schedule: %v (task %d)", e.Err, e.Task)
	case e.Value > 0:
		return fmt.Sprintf("build schedule: %v (value %d)", e.Err, e.Value)
	default:
		return fmt.Sprintf("build schedule: %v", e.Err)
	}
}

func (e *BuildError) Unwrap() error { return e.Err }

func buildErr(err error, task int, value uint64) error {
	return &BuildError{Err: err, Task: task, Value: value}
}
