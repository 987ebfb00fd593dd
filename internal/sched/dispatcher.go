package sched

import (
	"context"

	logx "superloop/pkg/logx"
)

// Run is the superloop. It sleeps until something is due, dispatches it,
// and repeats until ctx is cancelled, which is the only way it returns
// without an error from startup checks.
//
// Run refuses to start without a current schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	s.irq.Lock()
	built := s.built
	s.irq.Unlock()
	if !built {
		return ErrNotBuilt
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer s.running.Store(false)

	s.log.Info("dispatcher started", logx.String("mode", s.opt.Mode.String()), logx.Uint64("tick", uint64(s.now.Load())))
	for {
		if err := s.sleep(ctx); err != nil {
			s.log.Info("dispatcher stopped", logx.Uint64("tick", uint64(s.now.Load())))
			return err
		}
		s.dispatch()
	}
}

// Poll runs one dispatch pass without sleeping and returns the number of
// task bodies invoked. It must not be called concurrently with Run.
func (s *Scheduler) Poll() int {
	s.irq.Lock()
	built := s.built
	s.irq.Unlock()
	if !built {
		return 0
	}
	return s.dispatch()
}

// sleep returns once something is due. The due check and the wait are not
// atomic, but Tick leaves a token in the one-slot wake channel, so a tick
// landing between them wakes the next wait immediately.
func (s *Scheduler) sleep(ctx context.Context) error {
	for {
		s.irq.Lock()
		due := s.anyDueLocked()
		s.irq.Unlock()
		if due {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
	}
}

func (s *Scheduler) anyDueLocked() bool {
	switch s.opt.Mode {
	case ModePending:
		for i := 0; i < s.n; i++ {
			if s.tasks[i].pending > 0 || s.tasks[i].saturated {
				return true
			}
		}
	case ModePhase:
		now := s.now.Load()
		for i := 0; i < s.n; i++ {
			if Reached(now, s.tasks[i].nextDue) {
				return true
			}
		}
	case ModeSlot:
		if s.sched.nslots == 0 {
			return false
		}
		sl := s.sched.slots[s.cursor]
		return Reached(s.now.Load(), s.cycleBase+sl.Start)
	}
	return false
}

func (s *Scheduler) dispatch() int {
	switch s.opt.Mode {
	case ModePhase:
		return s.dispatchPhase()
	case ModeSlot:
		return s.dispatchSlot()
	default:
		return s.dispatchPending()
	}
}

func (s *Scheduler) dispatchPending() int {
	s.irq.Lock()
	n := s.n
	s.irq.Unlock()

	ran := 0
	for i := 0; i < n; i++ {
		d := &s.tasks[i]

		s.irq.Lock()
		runs := d.pending
		d.pending = 0
		sat := d.saturated
		d.saturated = false
		s.irq.Unlock()

		if sat {
			d.stats.saturations.Add(1)
			s.rep.PendingSaturated(PendingSaturation{Task: Handle(i), Name: d.name, At: s.now.Load()})
		}
		if runs == 0 {
			continue
		}
		if s.opt.Consume == ConsumeOnce && runs > 1 {
			d.stats.dropped.Add(uint64(runs - 1))
			runs = 1
		}
		for ; runs > 0; runs-- {
			s.invoke(Handle(i), d.slice)
			ran++
		}
	}
	return ran
}

func (s *Scheduler) dispatchPhase() int {
	s.irq.Lock()
	n := s.n
	s.irq.Unlock()

	ran := 0
	for i := 0; i < n; i++ {
		d := &s.tasks[i]

		s.irq.Lock()
		due := Reached(s.now.Load(), d.nextDue)
		if due {
			// Advance from the old deadline, not from now, so dispatch
			// latency never shifts the cadence.
			d.nextDue += d.period
		}
		s.irq.Unlock()

		if due {
			s.invoke(Handle(i), d.slice)
			ran++
		}
	}
	return ran
}

func (s *Scheduler) dispatchSlot() int {
	slots := s.sched.Slots()
	ran := 0
	// At most one hyperperiod's worth per pass.
	for k := 0; k < len(slots); k++ {
		s.irq.Lock()
		sl := slots[s.cursor]
		due := Reached(s.now.Load(), s.cycleBase+sl.Start)
		if due {
			s.cursor++
			if s.cursor == len(slots) {
				s.cursor = 0
				s.cycleBase += s.sched.Hyperperiod
			}
		}
		s.irq.Unlock()

		if !due {
			break
		}
		s.invoke(sl.Task, sl.Duration)
		ran++
	}
	return ran
}

// invoke runs one task body outside the critical section and checks the
// measured duration against budget.
func (s *Scheduler) invoke(h Handle, budget Tick) {
	d := &s.tasks[h]
	start := s.now.Load()
	d.task.Run(start)
	measured := s.now.Load() - start

	d.stats.record(measured)
	if measured > budget {
		d.stats.overruns.Add(1)
		s.rep.SliceOverrun(SliceOverrun{
			Task:     h,
			Name:     d.name,
			Start:    start,
			Measured: measured,
			Budget:   budget,
		})
	}
}
