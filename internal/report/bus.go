package report

import (
	"superloop/internal/eventbus"
	"superloop/internal/sched"
)

// Bus publishes overruns and saturation as events. Data is the sched value
// itself (sched.SliceOverrun or sched.PendingSaturation).
type Bus struct {
	B eventbus.Bus
}

func (b Bus) SliceOverrun(o sched.SliceOverrun) {
	b.B.Publish(eventbus.Event{Type: eventbus.TypeOverrun, Data: o})
}

func (b Bus) PendingSaturated(p sched.PendingSaturation) {
	b.B.Publish(eventbus.Event{Type: eventbus.TypeSaturation, Data: p})
}
