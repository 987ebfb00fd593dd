package sched

// Task is a task body. Run is called with the current tick and must return
// without blocking. It must not call back into the scheduler, except for
// Tick when the body itself stands in for an interrupt source (simulation).
type Task interface {
	Run(now Tick)
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func(now Tick)

func (f TaskFunc) Run(now Tick) { f(now) }

// Handle identifies a registered task. Handles are dense registration
// indexes, stable for the life of the scheduler.
type Handle int

// TaskSpec describes a task at registration time. All times are in ticks.
type TaskSpec struct {
	Name   string
	Task   Task
	Period Tick
	// Slice is the advisory per-run budget; 0 <= Slice <= Period.
	Slice Tick
	// Offset is the phase offset, 0 <= Offset < Period. With OffsetsAuto the
	// builder replaces it.
	Offset Tick
}

// MaxTasks is the capacity of the task table.
const MaxTasks = 8

// MaxPending is the saturation point of a task's pending count.
const MaxPending = 0xFFFF

type descriptor struct {
	name   string
	task   Task
	period Tick
	slice  Tick
	// offset as registered; the effective offset lives in sched.offsets.
	offset Tick

	// Due state. Guarded by Scheduler.irq.
	nextDue   Tick
	pending   uint16
	acc       Tick
	saturated bool

	stats taskStats
}
