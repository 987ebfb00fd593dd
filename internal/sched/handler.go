package sched

// Tick is the tick handler. Call it exactly once per tick from a single
// goroutine (the tick source). It never blocks and never allocates.
func (s *Scheduler) Tick() {
	s.now.Add(1)

	if s.opt.Mode == ModePending {
		s.irq.Lock()
		for i := 0; i < s.n; i++ {
			d := &s.tasks[i]
			d.acc++
			if d.acc < d.period {
				continue
			}
			d.acc = 0
			if d.pending < MaxPending {
				d.pending++
			} else {
				d.saturated = true
			}
		}
		s.irq.Unlock()
	}

	// Wake the dispatcher. A token already waiting is as good as a new one.
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
