package report

import "superloop/internal/sched"

// Fanout forwards every report to each non-nil Reporter, in order.
type Fanout []sched.Reporter

// NewFanout drops nil entries.
func NewFanout(rs ...sched.Reporter) Fanout {
	out := make(Fanout, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (f Fanout) SliceOverrun(o sched.SliceOverrun) {
	for _, r := range f {
		r.SliceOverrun(o)
	}
}

func (f Fanout) PendingSaturated(p sched.PendingSaturation) {
	for _, r := range f {
		r.PendingSaturated(p)
	}
}
