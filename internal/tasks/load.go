package tasks

import "superloop/internal/sched"

// Load wraps a task body with a fixed execution cost in ticks. Spend is
// called with the cost after the inner body runs; the simulator passes a
// function that advances virtual ticks, a live run passes one that sleeps.
type Load struct {
	Inner sched.Task
	Cost  int
	Spend func(ticks int)
}

func (l *Load) Run(now sched.Tick) {
	if l.Inner != nil {
		l.Inner.Run(now)
	}
	if l.Cost > 0 && l.Spend != nil {
		l.Spend(l.Cost)
	}
}

// WithCost wraps t in a Load when cost is positive.
func WithCost(t sched.Task, cost int, spend func(int)) sched.Task {
	if cost <= 0 || spend == nil {
		return t
	}
	return &Load{Inner: t, Cost: cost, Spend: spend}
}
