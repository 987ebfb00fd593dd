package sched

import (
	"context"
	"errors"
	"testing"
	"time"
)

func ticks(s *Scheduler, n int) {
	for i := 0; i < n; i++ {
		s.Tick()
	}
}

func TestPendingCountsNeverLoseTicks(t *testing.T) {
	t.Parallel()
	periods := []Tick{1, 3, 7, 10}
	s := New(Options{Mode: ModePending})
	for _, p := range periods {
		if _, err := s.Register(TaskSpec{Task: TaskFunc(nop), Period: p}); err != nil {
			t.Fatalf("Register error: %v", err)
		}
	}
	if _, err := s.Build(); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	for k := 1; k <= 50; k++ {
		s.Tick()
		snap := s.Snapshot()
		for i, p := range periods {
			want := uint16(Tick(k) / p)
			if got := snap.Tasks[i].Pending; got != want {
				t.Fatalf("after %d ticks, period %d: pending = %d, want %d", k, p, got, want)
			}
		}
	}
}

func TestPendingOffsetShiftsFirstFire(t *testing.T) {
	t.Parallel()
	s := New(Options{Mode: ModePending, Offsets: OffsetsExplicit})
	_, _ = s.Register(TaskSpec{Task: TaskFunc(nop), Period: 10, Offset: 3})
	if _, err := s.Build(); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	ticks(s, 2)
	if p := s.Snapshot().Tasks[0].Pending; p != 0 {
		t.Fatalf("pending after 2 ticks = %d, want 0", p)
	}
	ticks(s, 1)
	if p := s.Snapshot().Tasks[0].Pending; p != 1 {
		t.Fatalf("pending after 3 ticks = %d, want 1", p)
	}
	ticks(s, 10)
	if p := s.Snapshot().Tasks[0].Pending; p != 2 {
		t.Fatalf("pending after 13 ticks = %d, want 2", p)
	}
}

func TestPendingCoalescedCatchUp(t *testing.T) {
	t.Parallel()
	var seen []Tick
	s := New(Options{Mode: ModePending})
	_, _ = s.Register(TaskSpec{Task: TaskFunc(func(now Tick) { seen = append(seen, now) }), Period: 5, Slice: 1})
	if _, err := s.Build(); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	ticks(s, 23)
	if ran := s.Poll(); ran != 4 {
		t.Fatalf("Poll ran %d, want 4", ran)
	}
	for _, now := range seen {
		if now != 23 {
			t.Fatalf("body saw tick %d, want 23", now)
		}
	}
	if ran := s.Poll(); ran != 0 {
		t.Fatalf("second Poll ran %d, want 0", ran)
	}
	if snap := s.Snapshot(); snap.Tasks[0].Runs != 4 || snap.Tasks[0].Pending != 0 {
		t.Fatalf("snapshot = %+v", snap.Tasks[0])
	}
}

func TestPendingConsumeOnceDropsBacklog(t *testing.T) {
	t.Parallel()
	runs := 0
	s := New(Options{Mode: ModePending, Consume: ConsumeOnce})
	_, _ = s.Register(TaskSpec{Task: TaskFunc(func(Tick) { runs++ }), Period: 5})
	if _, err := s.Build(); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	ticks(s, 20)
	s.Poll()
	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}
	if d := s.Snapshot().Tasks[0].Dropped; d != 3 {
		t.Fatalf("Dropped = %d, want 3", d)
	}
}

func TestPendingSaturates(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	runs := 0
	s := New(Options{Mode: ModePending, Reporter: rec})
	_, _ = s.Register(TaskSpec{Name: "flood", Task: TaskFunc(func(Tick) { runs++ }), Period: 1})
	if _, err := s.Build(); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	ticks(s, MaxPending+3)
	if p := s.Snapshot().Tasks[0].Pending; p != MaxPending {
		t.Fatalf("pending = %d, want %d", p, MaxPending)
	}
	s.Poll()
	if runs != MaxPending {
		t.Fatalf("runs = %d, want %d", runs, MaxPending)
	}
	_, sats := rec.counts()
	if sats != 1 {
		t.Fatalf("saturation reports = %d, want 1", sats)
	}
	if rec.sats[0].Name != "flood" || rec.sats[0].At != MaxPending+3 {
		t.Fatalf("report = %+v", rec.sats[0])
	}
	if s.Snapshot().Tasks[0].Saturations != 1 {
		t.Fatal("Saturations counter not bumped")
	}
}

func TestPhaseCadenceDoesNotDrift(t *testing.T) {
	t.Parallel()
	var seen []Tick
	s := New(Options{Mode: ModePhase, Offsets: OffsetsExplicit})
	_, _ = s.Register(TaskSpec{Task: TaskFunc(func(now Tick) { seen = append(seen, now) }), Period: 10, Offset: 3})
	if _, err := s.Build(); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	ticks(s, 2)
	if ran := s.Poll(); ran != 0 {
		t.Fatalf("ran %d before offset", ran)
	}
	ticks(s, 1)
	if ran := s.Poll(); ran != 1 {
		t.Fatalf("ran %d at offset, want 1", ran)
	}
	if nd := s.Snapshot().Tasks[0].NextDue; nd != 13 {
		t.Fatalf("NextDue = %d, want 13", nd)
	}
	// Dispatch 4 ticks late.
	ticks(s, 14)
	if ran := s.Poll(); ran != 1 {
		t.Fatalf("late Poll ran %d, want 1", ran)
	}
	if nd := s.Snapshot().Tasks[0].NextDue; nd != 23 {
		t.Fatalf("NextDue = %d, want 23 (old deadline + period)", nd)
	}
	if seen[1] != 17 {
		t.Fatalf("late run saw tick %d, want 17", seen[1])
	}
}

func TestPhaseCatchesUpAfterLongDelay(t *testing.T) {
	t.Parallel()
	runs := 0
	s := New(Options{Mode: ModePhase})
	_, _ = s.Register(TaskSpec{Task: TaskFunc(func(Tick) { runs++ }), Period: 4})
	if _, err := s.Build(); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	// Due at 0, 4, 8 by tick 10.
	ticks(s, 10)
	for s.Poll() > 0 {
	}
	if runs != 3 {
		t.Fatalf("runs = %d, want 3", runs)
	}
	if nd := s.Snapshot().Tasks[0].NextDue; nd != 12 {
		t.Fatalf("NextDue = %d, want 12", nd)
	}
}

func TestPhaseWorksAcrossCounterWrap(t *testing.T) {
	t.Parallel()
	runs := 0
	s := New(Options{Mode: ModePhase})
	s.now.Store(^Tick(0) - 5)
	_, _ = s.Register(TaskSpec{Task: TaskFunc(func(Tick) { runs++ }), Period: 4})
	if _, err := s.Build(); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	for i := 0; i < 12; i++ {
		s.Poll()
		s.Tick()
	}
	s.Poll()
	// Due at base, +4, +8, +12.
	if runs != 4 {
		t.Fatalf("runs = %d, want 4", runs)
	}
}

func slotTestScheduler(t *testing.T, counts map[Handle]int, order *[]Handle) *Scheduler {
	t.Helper()
	s := New(Options{Mode: ModeSlot})
	for _, p := range []TaskSpec{
		{Name: "t1", Period: 10, Slice: 2},
		{Name: "t2", Period: 50, Slice: 5},
		{Name: "t3", Period: 100, Slice: 10},
	} {
		h := Handle(s.Len())
		p.Task = TaskFunc(func(Tick) {
			counts[h]++
			if order != nil {
				*order = append(*order, h)
			}
		})
		if _, err := s.Register(p); err != nil {
			t.Fatalf("Register error: %v", err)
		}
	}
	if _, err := s.Build(); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	return s
}

func TestSlotModeRunsEveryInstance(t *testing.T) {
	t.Parallel()
	counts := map[Handle]int{}
	var order []Handle
	s := slotTestScheduler(t, counts, &order)
	s.Poll()
	for i := 0; i < 199; i++ {
		s.Tick()
		s.Poll()
	}
	if counts[0] != 20 || counts[1] != 4 || counts[2] != 2 {
		t.Fatalf("counts = %v, want t1=20 t2=4 t3=2", counts)
	}
	sch, _ := s.Schedule()
	slots := sch.Slots()
	for i, h := range order {
		if want := slots[i%len(slots)].Task; h != want {
			t.Fatalf("dispatch %d ran task %d, want %d", i, h, want)
		}
	}
}

func TestSlotModeLateDispatcherNeverSkips(t *testing.T) {
	t.Parallel()
	counts := map[Handle]int{}
	s := slotTestScheduler(t, counts, nil)
	ticks(s, 250)
	var passes []int
	for {
		n := s.Poll()
		if n == 0 {
			break
		}
		passes = append(passes, n)
	}
	if len(passes) != 3 || passes[0] != 13 || passes[1] != 13 || passes[2] != 7 {
		t.Fatalf("passes = %v, want [13 13 7]", passes)
	}
}

func TestSliceOverrunReportedOnce(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	s := New(Options{Mode: ModePending, Reporter: rec})
	slow := TaskFunc(func(Tick) {
		// Ticks keep arriving while the body runs.
		ticks(s, 3+5)
	})
	nextRuns := 0
	_, _ = s.Register(TaskSpec{Name: "slow", Task: slow, Period: 10, Slice: 3})
	_, _ = s.Register(TaskSpec{Name: "next", Task: TaskFunc(func(Tick) { nextRuns++ }), Period: 10, Slice: 3})
	if _, err := s.Build(); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	ticks(s, 10)
	// Auto offsets put "next" at 3, so it is owed for ticks 3 and 13 once
	// the slow body has pushed time to 18.
	if ran := s.Poll(); ran != 3 {
		t.Fatalf("Poll ran %d, want 3", ran)
	}
	if nextRuns != 2 {
		t.Fatalf("next ran %d times, want 2 (dispatcher must proceed and catch up)", nextRuns)
	}
	overruns, _ := rec.counts()
	if overruns != 1 {
		t.Fatalf("overrun reports = %d, want 1", overruns)
	}
	got := rec.overruns[0]
	want := SliceOverrun{Task: 0, Name: "slow", Start: 10, Measured: 8, Budget: 3}
	if got != want {
		t.Fatalf("report = %+v, want %+v", got, want)
	}
	snap := s.Snapshot()
	if snap.Tasks[0].Overruns != 1 || snap.Tasks[0].MaxMeasured != 8 || snap.Tasks[1].Overruns != 0 {
		t.Fatalf("stats = %+v", snap.Tasks)
	}
}

func TestRunWakesOnTickAndStopsOnCancel(t *testing.T) {
	t.Parallel()
	ran := make(chan Tick, 16)
	s := New(Options{Mode: ModePending})
	_, _ = s.Register(TaskSpec{Task: TaskFunc(func(now Tick) { ran <- now }), Period: 2})
	if _, err := s.Build(); err != nil {
		t.Fatalf("Build error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for !s.Snapshot().Running {
		time.Sleep(time.Millisecond)
	}
	if _, err := s.Register(TaskSpec{Task: TaskFunc(nop), Period: 1}); !errors.Is(err, ErrRunning) {
		t.Fatalf("Register while running err = %v, want ErrRunning", err)
	}
	if err := s.Run(ctx); !errors.Is(err, ErrRunning) {
		t.Fatalf("second Run err = %v, want ErrRunning", err)
	}

	ticks(s, 4)
	for i := 0; i < 2; i++ {
		select {
		case <-ran:
		case <-time.After(2 * time.Second):
			t.Fatalf("task run %d not dispatched", i)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
