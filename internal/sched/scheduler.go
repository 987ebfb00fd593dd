package sched

import (
	"strings"
	"sync"
	"sync/atomic"

	logx "superloop/pkg/logx"
)

// Scheduler owns the tick counter, the task table and the built schedule.
// Create one per process with New, register tasks, Build, then hand Tick to
// a tick source and call Run.
type Scheduler struct {
	opt Options
	log logx.Logger
	rep Reporter

	now atomic.Uint32

	// irq is the critical section between Tick (interrupt context) and the
	// dispatcher. Hold it only to read or update due state, never across a
	// task body.
	irq   sync.Mutex
	tasks [MaxTasks]descriptor
	n     int

	sched Schedule
	built bool

	// Slot mode cursor. Guarded by irq.
	cursor    int
	cycleBase Tick

	running atomic.Bool
	wake    chan struct{}
}

// New returns an empty scheduler.
func New(opt Options) *Scheduler {
	opt = opt.withDefaults()
	return &Scheduler{
		opt:  opt,
		log:  opt.Log,
		rep:  opt.Reporter,
		wake: make(chan struct{}, 1),
	}
}

// Mode returns the dispatch mode.
func (s *Scheduler) Mode() Mode { return s.opt.Mode }

// Now returns the current tick.
func (s *Scheduler) Now() Tick { return s.now.Load() }

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	s.irq.Lock()
	defer s.irq.Unlock()
	return s.n
}

// Register appends a task to the table. On error the table is unchanged.
//
// Registering after Build is allowed until Run starts, but it invalidates
// the schedule; Build must be called again.
func (s *Scheduler) Register(spec TaskSpec) (Handle, error) {
	name := strings.TrimSpace(spec.Name)
	if s.running.Load() {
		return -1, &RegistrationError{Name: name, Err: ErrRunning}
	}
	switch {
	case spec.Task == nil:
		return -1, &RegistrationError{Name: name, Err: ErrInvalidTask}
	case spec.Period == 0:
		return -1, &RegistrationError{Name: name, Err: ErrInvalidPeriod}
	case spec.Slice > spec.Period:
		return -1, &RegistrationError{Name: name, Err: ErrInvalidSlice}
	case spec.Offset >= spec.Period:
		return -1, &RegistrationError{Name: name, Err: ErrInvalidOffset}
	}

	s.irq.Lock()
	if s.n >= MaxTasks {
		s.irq.Unlock()
		return -1, &RegistrationError{Name: name, Err: ErrCapacityExceeded}
	}
	h := Handle(s.n)
	d := &s.tasks[s.n]
	d.name = name
	d.task = spec.Task
	d.period = spec.Period
	d.slice = spec.Slice
	d.offset = spec.Offset
	d.nextDue = spec.Offset
	d.pending = 0
	s.n++
	wasBuilt := s.built
	s.built = false
	s.irq.Unlock()

	if wasBuilt {
		s.log.Warn("task registered after build; schedule must be rebuilt", logx.String("task", name))
	}
	s.log.Debug("task registered",
		logx.String("task", name),
		logx.Int("handle", int(h)),
		logx.Uint64("period", uint64(spec.Period)),
		logx.Uint64("slice", uint64(spec.Slice)),
		logx.Uint64("offset", uint64(spec.Offset)),
	)
	return h, nil
}

// Build computes schedule metadata for the registered tasks and resets all
// due state relative to the current tick.
func (s *Scheduler) Build() (Schedule, error) {
	if s.running.Load() {
		return Schedule{}, &BuildError{Err: ErrRunning, Task: -1}
	}

	s.irq.Lock()
	n := s.n
	var params [MaxTasks]TaskParams
	for i := 0; i < n; i++ {
		d := &s.tasks[i]
		params[i] = TaskParams{Period: d.period, Slice: d.slice, Offset: d.offset}
	}
	s.irq.Unlock()

	sch, err := Build(params[:n], BuildOptions{
		Offsets:           s.opt.Offsets,
		Slots:             s.opt.Mode == ModeSlot,
		StrictUtilization: s.opt.StrictUtilization,
	})
	if err != nil {
		s.irq.Lock()
		s.built = false
		s.irq.Unlock()
		s.log.Error("schedule build failed", logx.Err(err))
		return Schedule{}, err
	}

	s.irq.Lock()
	now := s.now.Load()
	for i := 0; i < n; i++ {
		d := &s.tasks[i]
		off := sch.offsets[i]
		d.nextDue = now + off
		d.pending = 0
		d.saturated = false
		d.acc = (d.period - off) % d.period
	}
	s.sched = sch
	s.cursor = 0
	s.cycleBase = now
	s.built = true
	s.irq.Unlock()

	s.log.Info("schedule built",
		logx.String("mode", s.opt.Mode.String()),
		logx.String("offsets", s.opt.Offsets.String()),
		logx.Int("tasks", n),
		logx.Uint64("hyperperiod", uint64(sch.Hyperperiod)),
		logx.Float64("utilization", sch.Utilization()),
		logx.Int("slots", len(sch.Slots())),
	)
	if !sch.Schedulable() {
		s.log.Warn("task set over-utilized; tasks will be delayed",
			logx.Uint64("busy_ticks", sch.BusyTicks),
			logx.Uint64("hyperperiod", uint64(sch.Hyperperiod)),
		)
	}
	if cs := sch.Collisions(); len(cs) > 0 {
		s.log.Warn("slot windows overlap", logx.Int("collisions", len(cs)))
		for _, c := range cs {
			s.log.Debug("slot collision",
				logx.String("a", s.tasks[c.A.Task].name),
				logx.Uint64("a_start", uint64(c.A.Start)),
				logx.String("b", s.tasks[c.B.Task].name),
				logx.Uint64("b_start", uint64(c.B.Start)),
			)
		}
	}
	return sch, nil
}

// Schedule returns a copy of the built schedule and whether it is current.
func (s *Scheduler) Schedule() (Schedule, bool) {
	s.irq.Lock()
	defer s.irq.Unlock()
	return s.sched, s.built
}

// Name returns the registered name of h.
func (s *Scheduler) Name(h Handle) string {
	s.irq.Lock()
	defer s.irq.Unlock()
	if int(h) < 0 || int(h) >= s.n {
		return ""
	}
	return s.tasks[h].name
}
