package sched

import "sync/atomic"

type taskStats struct {
	runs         atomic.Uint64
	overruns     atomic.Uint64
	saturations  atomic.Uint64
	dropped      atomic.Uint64
	lastMeasured atomic.Uint32
	maxMeasured  atomic.Uint32
}

func (st *taskStats) record(measured Tick) {
	st.runs.Add(1)
	st.lastMeasured.Store(measured)
	// Only the dispatcher writes, so load-then-store is enough.
	if measured > st.maxMeasured.Load() {
		st.maxMeasured.Store(measured)
	}
}

// TaskSnapshot is a point-in-time view of one task.
type TaskSnapshot struct {
	Handle  Handle `json:"handle"`
	Name    string `json:"name"`
	Period  Tick   `json:"period"`
	Slice   Tick   `json:"slice"`
	Offset  Tick   `json:"offset"`
	NextDue Tick   `json:"next_due"`
	Pending uint16 `json:"pending"`

	Runs         uint64 `json:"runs"`
	Overruns     uint64 `json:"overruns"`
	Saturations  uint64 `json:"saturations"`
	Dropped      uint64 `json:"dropped"`
	LastMeasured Tick   `json:"last_measured"`
	MaxMeasured  Tick   `json:"max_measured"`
}

// Snapshot is a point-in-time view of the scheduler, for diagnostics only.
type Snapshot struct {
	Now         Tick           `json:"now"`
	Mode        string         `json:"mode"`
	Built       bool           `json:"built"`
	Running     bool           `json:"running"`
	Hyperperiod Tick           `json:"hyperperiod"`
	Utilization float64        `json:"utilization"`
	Tasks       []TaskSnapshot `json:"tasks"`
}

// Snapshot copies the current state. It allocates; keep it off the
// dispatch path.
func (s *Scheduler) Snapshot() Snapshot {
	s.irq.Lock()
	defer s.irq.Unlock()

	snap := Snapshot{
		Now:         s.now.Load(),
		Mode:        s.opt.Mode.String(),
		Built:       s.built,
		Running:     s.running.Load(),
		Hyperperiod: s.sched.Hyperperiod,
		Utilization: s.sched.Utilization(),
		Tasks:       make([]TaskSnapshot, 0, s.n),
	}
	for i := 0; i < s.n; i++ {
		d := &s.tasks[i]
		off := d.offset
		if s.built {
			off = s.sched.offsets[i]
		}
		snap.Tasks = append(snap.Tasks, TaskSnapshot{
			Handle:       Handle(i),
			Name:         d.name,
			Period:       d.period,
			Slice:        d.slice,
			Offset:       off,
			NextDue:      d.nextDue,
			Pending:      d.pending,
			Runs:         d.stats.runs.Load(),
			Overruns:     d.stats.overruns.Load(),
			Saturations:  d.stats.saturations.Load(),
			Dropped:      d.stats.dropped.Load(),
			LastMeasured: d.stats.lastMeasured.Load(),
			MaxMeasured:  d.stats.maxMeasured.Load(),
		})
	}
	return snap
}
