package sched

import (
	"errors"
	"testing"
)

func TestGCDLCM(t *testing.T) {
	t.Parallel()
	if got := GCD(48, 18); got != 6 {
		t.Fatalf("GCD(48, 18) = %d, want 6", got)
	}
	if got := GCD(7, 0); got != 7 {
		t.Fatalf("GCD(7, 0) = %d, want 7", got)
	}
	if got := LCM(4, 6); got != 12 {
		t.Fatalf("LCM(4, 6) = %d, want 12", got)
	}
	if got := LCM(0, 6); got != 0 {
		t.Fatalf("LCM(0, 6) = %d, want 0", got)
	}
}

func TestHyperperiod(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		periods []Tick
		want    Tick
	}{
		{name: "harmonic", periods: []Tick{10, 50, 100}, want: 100},
		{name: "coprime", periods: []Tick{3, 4, 5}, want: 60},
		{name: "single", periods: []Tick{7}, want: 7},
		{name: "shared factors", periods: []Tick{6, 10, 15}, want: 30},
		{name: "duplicates", periods: []Tick{8, 8, 4}, want: 8},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Hyperperiod(tt.periods)
			if err != nil {
				t.Fatalf("Hyperperiod(%v) error: %v", tt.periods, err)
			}
			if got != tt.want {
				t.Fatalf("Hyperperiod(%v) = %d, want %d", tt.periods, got, tt.want)
			}
		})
	}
}

func TestHyperperiodOverflow(t *testing.T) {
	t.Parallel()
	_, err := Hyperperiod([]Tick{65521, 65519, 10})
	if !errors.Is(err, ErrHyperperiodOverflow) {
		t.Fatalf("err = %v, want ErrHyperperiodOverflow", err)
	}
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("err = %T, want *BuildError", err)
	}
	if be.Task != 1 {
		t.Fatalf("BuildError.Task = %d, want 1", be.Task)
	}
	if be.Value != 65521*65519 {
		t.Fatalf("BuildError.Value = %d, want %d", be.Value, 65521*65519)
	}
}

func TestHyperperiodEmpty(t *testing.T) {
	t.Parallel()
	if _, err := Hyperperiod(nil); !errors.Is(err, ErrNoTasks) {
		t.Fatalf("err = %v, want ErrNoTasks", err)
	}
}

func TestBuildInstanceCounts(t *testing.T) {
	t.Parallel()
	params := []TaskParams{
		{Period: 10, Slice: 2},
		{Period: 50, Slice: 5},
		{Period: 100, Slice: 10},
	}
	s, err := Build(params, BuildOptions{Slots: true})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if s.Hyperperiod != 100 {
		t.Fatalf("Hyperperiod = %d, want 100", s.Hyperperiod)
	}
	for h, want := range []int{10, 2, 1} {
		if got := s.Instances(Handle(h)); got != want {
			t.Fatalf("Instances(%d) = %d, want %d", h, got, want)
		}
	}
	slots := s.Slots()
	if len(slots) != 13 {
		t.Fatalf("len(Slots) = %d, want 13", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].Start < slots[i-1].Start {
			t.Fatalf("slots not sorted at %d: %d < %d", i, slots[i].Start, slots[i-1].Start)
		}
	}
	if s.BusyTicks != 10*2+2*5+10 {
		t.Fatalf("BusyTicks = %d, want 40", s.BusyTicks)
	}
}

// The classic three-task set packs the 100-tick task first, so the 10-tick
// task lands inside its window at offset 5. This is a known collision of the
// cumulative-offset heuristic.
func TestAutoOffsetsKnownCollision(t *testing.T) {
	t.Parallel()
	params := []TaskParams{
		{Period: 10, Slice: 2},
		{Period: 50, Slice: 5},
		{Period: 100, Slice: 10},
	}
	s, err := Build(params, BuildOptions{Offsets: OffsetsAuto, Slots: true})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	wantOrder := []Handle{2, 1, 0}
	for i, h := range s.Order() {
		if h != wantOrder[i] {
			t.Fatalf("Order = %v, want %v", s.Order(), wantOrder)
		}
	}
	for h, want := range []Tick{5, 10, 0} {
		if got := s.Offset(Handle(h)); got != want {
			t.Fatalf("Offset(%d) = %d, want %d", h, got, want)
		}
	}
	cs := s.Collisions()
	if len(cs) != 1 {
		t.Fatalf("Collisions = %+v, want exactly one", cs)
	}
	if cs[0].A != (Slot{Task: 2, Start: 0, Duration: 10}) || cs[0].B != (Slot{Task: 0, Start: 5, Duration: 2}) {
		t.Fatalf("collision = %+v", cs[0])
	}
}

func TestAutoOffsetsCollisionFree(t *testing.T) {
	t.Parallel()
	params := []TaskParams{
		{Period: 10, Slice: 2},
		{Period: 20, Slice: 3},
	}
	s, err := Build(params, BuildOptions{Offsets: OffsetsAuto, Slots: true})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if s.Offset(0) != 3 || s.Offset(1) != 0 {
		t.Fatalf("offsets = %d,%d, want 3,0", s.Offset(0), s.Offset(1))
	}
	if cs := s.Collisions(); len(cs) != 0 {
		t.Fatalf("Collisions = %+v, want none", cs)
	}
	want := []Slot{
		{Task: 1, Start: 0, Duration: 3},
		{Task: 0, Start: 3, Duration: 2},
		{Task: 0, Start: 13, Duration: 2},
	}
	got := s.Slots()
	if len(got) != len(want) {
		t.Fatalf("Slots = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Slots[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAutoOffsetsTieBreakByRegistration(t *testing.T) {
	t.Parallel()
	params := []TaskParams{
		{Period: 20, Slice: 1},
		{Period: 20, Slice: 2},
		{Period: 10, Slice: 3},
	}
	s, err := Build(params, BuildOptions{})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	order := s.Order()
	if order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("Order = %v, want [0 1 2]", order)
	}
	for h, want := range []Tick{0, 1, 3} {
		if got := s.Offset(Handle(h)); got != want {
			t.Fatalf("Offset(%d) = %d, want %d", h, got, want)
		}
	}
}

func TestExplicitOffsetsSameStartKeepRegistrationOrder(t *testing.T) {
	t.Parallel()
	params := []TaskParams{
		{Period: 10, Slice: 1, Offset: 4},
		{Period: 10, Slice: 1, Offset: 4},
	}
	s, err := Build(params, BuildOptions{Offsets: OffsetsExplicit, Slots: true})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	slots := s.Slots()
	if slots[0].Task != 0 || slots[1].Task != 1 {
		t.Fatalf("Slots = %+v, want task 0 before task 1", slots)
	}
	if cs := s.Collisions(); len(cs) != 1 {
		t.Fatalf("Collisions = %+v, want one", cs)
	}
}

func TestCollisionAcrossHyperperiodBoundary(t *testing.T) {
	t.Parallel()
	params := []TaskParams{
		{Period: 10, Slice: 4, Offset: 8},
		{Period: 10, Slice: 1, Offset: 1},
	}
	s, err := Build(params, BuildOptions{Offsets: OffsetsExplicit, Slots: true})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	cs := s.Collisions()
	if len(cs) != 1 {
		t.Fatalf("Collisions = %+v, want one", cs)
	}
	if cs[0].A.Task != 0 || cs[0].B.Task != 1 {
		t.Fatalf("collision = %+v, want task 0 spilling into task 1", cs[0])
	}
}

func TestZeroLengthSlotNeverCollides(t *testing.T) {
	t.Parallel()
	params := []TaskParams{
		{Period: 10, Slice: 5, Offset: 0},
		{Period: 10, Slice: 0, Offset: 2},
	}
	s, err := Build(params, BuildOptions{Offsets: OffsetsExplicit, Slots: true})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if cs := s.Collisions(); len(cs) != 0 {
		t.Fatalf("Collisions = %+v, want none for a zero-length window", cs)
	}
}

func TestBuildUtilization(t *testing.T) {
	t.Parallel()
	params := []TaskParams{
		{Period: 10, Slice: 6},
		{Period: 10, Slice: 5},
	}
	s, err := Build(params, BuildOptions{})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if s.Schedulable() {
		t.Fatal("Schedulable = true, want false")
	}
	if u := s.Utilization(); u != 1.1 {
		t.Fatalf("Utilization = %v, want 1.1", u)
	}

	_, err = Build(params, BuildOptions{StrictUtilization: true})
	if !errors.Is(err, ErrOverUtilized) {
		t.Fatalf("strict err = %v, want ErrOverUtilized", err)
	}
}

func TestBuildSlotTableFull(t *testing.T) {
	t.Parallel()
	params := []TaskParams{
		{Period: 1},
		{Period: 129},
	}
	if _, err := Build(params, BuildOptions{Slots: true}); !errors.Is(err, ErrSlotTableFull) {
		t.Fatalf("err = %v, want ErrSlotTableFull", err)
	}
	// Without a slot table the same set is fine.
	if _, err := Build(params, BuildOptions{}); err != nil {
		t.Fatalf("Build without slots error: %v", err)
	}
}

func TestBuildRejectsInvalidParams(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		params []TaskParams
		want   error
	}{
		{name: "empty", params: nil, want: ErrNoTasks},
		{name: "zero period", params: []TaskParams{{Period: 0}}, want: ErrInvalidPeriod},
		{name: "slice over period", params: []TaskParams{{Period: 5, Slice: 6}}, want: ErrInvalidSlice},
		{name: "offset at period", params: []TaskParams{{Period: 5, Offset: 5}}, want: ErrInvalidOffset},
		{name: "too many", params: make([]TaskParams, MaxTasks+1), want: ErrCapacityExceeded},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(tt.params, BuildOptions{}); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildIdempotent(t *testing.T) {
	t.Parallel()
	params := []TaskParams{
		{Period: 12, Slice: 1},
		{Period: 8, Slice: 2},
		{Period: 6, Slice: 1},
	}
	a, err := Build(params, BuildOptions{Slots: true})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	b, err := Build(params, BuildOptions{Slots: true})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if a != b {
		t.Fatal("rebuilding the same task set produced a different schedule")
	}
}
