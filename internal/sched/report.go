package sched

// SliceOverrun is reported when a task body ran longer than its slice
// budget. It is advisory: the run already completed.
type SliceOverrun struct {
	Task     Handle
	Name     string
	Start    Tick
	Measured Tick
	Budget   Tick
}

// PendingSaturation is reported when a task's owed-run counter hit
// MaxPending and further due events were not counted.
type PendingSaturation struct {
	Task Handle
	Name string
	At   Tick
}

// Reporter receives runtime, non-fatal conditions. It is called from the
// dispatcher between task bodies and must return quickly.
type Reporter interface {
	SliceOverrun(SliceOverrun)
	PendingSaturated(PendingSaturation)
}

type nopReporter struct{}

func (nopReporter) SliceOverrun(SliceOverrun)           {}
func (nopReporter) PendingSaturated(PendingSaturation) {}
