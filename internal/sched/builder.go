package sched

import (
	"cmp"
	"slices"
)

// OffsetPolicy selects how phase offsets are chosen at build time.
type OffsetPolicy int

const (
	// OffsetsAuto packs tasks by cumulative slice budget (see AssignOffsets).
	OffsetsAuto OffsetPolicy = iota
	// OffsetsExplicit keeps the offsets given at registration.
	OffsetsExplicit
)

func (p OffsetPolicy) String() string {
	switch p {
	case OffsetsAuto:
		return "auto"
	case OffsetsExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// MaxSlots is the capacity of the materialized slot table.
const MaxSlots = 128

// TaskParams is the timing part of a task, as seen by the builder.
type TaskParams struct {
	Period Tick
	Slice  Tick
	Offset Tick
}

// BuildOptions controls Build.
type BuildOptions struct {
	Offsets OffsetPolicy
	// Slots materializes the per-hyperperiod slot table.
	Slots bool
	// StrictUtilization fails the build when the busy ticks per hyperperiod
	// exceed the hyperperiod. Otherwise over-utilization is only reported.
	StrictUtilization bool
}

// Slot is one task instance inside the hyperperiod.
type Slot struct {
	Task     Handle
	Start    Tick
	Duration Tick
}

func (s Slot) end() uint64 { return uint64(s.Start) + uint64(s.Duration) }

// Collision is a pair of slots of different tasks whose
// [start, start+duration) windows overlap.
type Collision struct {
	A, B Slot
}

// Schedule is derived data: rebuilt whenever the task set changes, never
// edited task by task.
type Schedule struct {
	Hyperperiod Tick
	// BusyTicks is the sum of slice budgets over one hyperperiod.
	BusyTicks uint64

	tasks   int
	offsets [MaxTasks]Tick
	order   [MaxTasks]Handle
	slots   [MaxSlots]Slot
	nslots  int
}

// Tasks returns the number of tasks the schedule was built for.
func (s *Schedule) Tasks() int { return s.tasks }

// Offset returns the effective phase offset of h.
func (s *Schedule) Offset(h Handle) Tick {
	if int(h) < 0 || int(h) >= s.tasks {
		return 0
	}
	return s.offsets[h]
}

// Order returns task handles sorted by period descending, registration
// order on ties. This is the order offsets were assigned in.
func (s *Schedule) Order() []Handle { return s.order[:s.tasks] }

// Slots returns the slot table sorted by start time. Empty unless the
// schedule was built with slots.
func (s *Schedule) Slots() []Slot { return s.slots[:s.nslots] }

// Instances counts the slots belonging to h.
func (s *Schedule) Instances(h Handle) int {
	n := 0
	for _, sl := range s.Slots() {
		if sl.Task == h {
			n++
		}
	}
	return n
}

// Utilization is BusyTicks / Hyperperiod.
func (s *Schedule) Utilization() float64 {
	if s.Hyperperiod == 0 {
		return 0
	}
	return float64(s.BusyTicks) / float64(s.Hyperperiod)
}

// Schedulable reports total utilization <= 1. This is a necessary
// condition only; the offset heuristic may still produce collisions.
func (s *Schedule) Schedulable() bool {
	return s.BusyTicks <= uint64(s.Hyperperiod)
}

// Collisions lists overlapping slot pairs of different tasks, including
// windows that run past the end of the hyperperiod into the next one.
// Zero-length windows never collide.
func (s *Schedule) Collisions() []Collision {
	var out []Collision
	slots := s.Slots()
	hp := uint64(s.Hyperperiod)
	for i, a := range slots {
		end := a.end()
		for j := i + 1; j < len(slots); j++ {
			b := slots[j]
			if uint64(b.Start) >= end {
				break
			}
			if b.Task != a.Task && b.Duration > 0 {
				out = append(out, Collision{A: a, B: b})
			}
		}
		if hp == 0 || end <= hp {
			continue
		}
		spill := end - hp
		for j := 0; j < len(slots) && uint64(slots[j].Start) < spill; j++ {
			b := slots[j]
			if j != i && b.Task != a.Task && b.Duration > 0 {
				out = append(out, Collision{A: a, B: b})
			}
		}
	}
	return out
}

// GCD is the Euclidean greatest common divisor.
func GCD(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// LCM is a/gcd(a,b)*b; dividing first keeps the intermediate small.
func LCM(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a / GCD(a, b) * b
}

// Hyperperiod is the iterated LCM of periods. It fails as soon as the
// running value leaves the signed tick range.
func Hyperperiod(periods []Tick) (Tick, error) {
	if len(periods) == 0 {
		return 0, buildErr(ErrNoTasks, -1, 0)
	}
	var h uint64 = 1
	for i, p := range periods {
		if p == 0 {
			return 0, buildErr(ErrInvalidPeriod, i, 0)
		}
		h = LCM(h, uint64(p))
		if h > uint64(MaxHyperperiod) {
			return 0, buildErr(ErrHyperperiodOverflow, i, h)
		}
	}
	return Tick(h), nil
}

// AssignOffsets fills order with handles sorted by period descending
// (registration order on ties) and, for OffsetsAuto, sets each offset to the
// running sum of the slice budgets before it, modulo its own period.
//
// The auto policy is a greedy heuristic. It does not prove the set is
// collision free; check Schedule.Collisions.
func AssignOffsets(params []TaskParams, policy OffsetPolicy, offsets *[MaxTasks]Tick, order *[MaxTasks]Handle) {
	n := len(params)
	for i := 0; i < n; i++ {
		order[i] = Handle(i)
		offsets[i] = params[i].Offset
	}
	slices.SortStableFunc(order[:n], func(a, b Handle) int {
		return cmp.Compare(params[b].Period, params[a].Period)
	})
	if policy != OffsetsAuto {
		return
	}
	var acc uint64
	for _, h := range order[:n] {
		p := params[h]
		offsets[h] = Tick(acc % uint64(p.Period))
		acc += uint64(p.Slice)
	}
}

// Build computes the hyperperiod, offsets and (optionally) the slot table.
// It is pure: the same params and options always give the same schedule.
func Build(params []TaskParams, opt BuildOptions) (Schedule, error) {
	var s Schedule
	if len(params) == 0 {
		return s, buildErr(ErrNoTasks, -1, 0)
	}
	if len(params) > MaxTasks {
		return s, buildErr(ErrCapacityExceeded, -1, uint64(len(params)))
	}
	var periods [MaxTasks]Tick
	for i, p := range params {
		switch {
		case p.Period == 0:
			return s, buildErr(ErrInvalidPeriod, i, 0)
		case p.Slice > p.Period:
			return s, buildErr(ErrInvalidSlice, i, uint64(p.Slice))
		case p.Offset >= p.Period:
			return s, buildErr(ErrInvalidOffset, i, uint64(p.Offset))
		}
		periods[i] = p.Period
	}

	hp, err := Hyperperiod(periods[:len(params)])
	if err != nil {
		return s, err
	}
	s.Hyperperiod = hp
	s.tasks = len(params)
	AssignOffsets(params, opt.Offsets, &s.offsets, &s.order)

	var total uint64
	for _, p := range params {
		inst := uint64(hp / p.Period)
		total += inst
		s.BusyTicks += inst * uint64(p.Slice)
	}
	if opt.StrictUtilization && !s.Schedulable() {
		return Schedule{}, buildErr(ErrOverUtilized, -1, s.BusyTicks)
	}

	if !opt.Slots {
		return s, nil
	}
	if total > MaxSlots {
		return Schedule{}, buildErr(ErrSlotTableFull, -1, total)
	}
	for i, p := range params {
		inst := hp / p.Period
		for k := Tick(0); k < inst; k++ {
			s.slots[s.nslots] = Slot{
				Task:     Handle(i),
				Start:    s.offsets[i] + k*p.Period,
				Duration: p.Slice,
			}
			s.nslots++
		}
	}
	// Stable: slots were emitted in registration order, so ties keep it.
	slices.SortStableFunc(s.slots[:s.nslots], func(a, b Slot) int {
		return cmp.Compare(a.Start, b.Start)
	})
	return s, nil
}
