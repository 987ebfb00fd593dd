package sched

import (
	"math"
	"testing"
)

func TestSinceAcrossWrap(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		now, then Tick
		want      int32
	}{
		{name: "plain", now: 110, then: 100, want: 10},
		{name: "behind", now: 100, then: 110, want: -10},
		{name: "wrapped", now: 5, then: math.MaxUint32 - 4, want: 10},
		{name: "wrapped behind", now: math.MaxUint32 - 4, then: 5, want: -10},
		{name: "half range", now: math.MaxInt32, then: 0, want: math.MaxInt32},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Since(tt.now, tt.then); got != tt.want {
				t.Fatalf("Since(%d, %d) = %d, want %d", tt.now, tt.then, got, tt.want)
			}
		})
	}
}

func TestReachedAcrossWrap(t *testing.T) {
	t.Parallel()
	deadline := Tick(math.MaxUint32 - 2)
	for _, now := range []Tick{math.MaxUint32 - 2, math.MaxUint32, 0, 1, 1000} {
		if !Reached(now, deadline) {
			t.Fatalf("Reached(%d, %d) = false, want true", now, deadline)
		}
	}
	for _, now := range []Tick{math.MaxUint32 - 3, math.MaxUint32 - 1000} {
		if Reached(now, deadline) {
			t.Fatalf("Reached(%d, %d) = true, want false", now, deadline)
		}
	}
}

func TestParseOptions(t *testing.T) {
	t.Parallel()

	if m, err := ParseMode(" Slot "); err != nil || m != ModeSlot {
		t.Fatalf("ParseMode(Slot) = %v, %v", m, err)
	}
	if m, err := ParseMode(""); err != nil || m != ModePending {
		t.Fatalf("ParseMode(\"\") = %v, %v", m, err)
	}
	if _, err := ParseMode("edf"); err == nil {
		t.Fatalf("ParseMode(edf): expected error")
	}
	if c, err := ParseConsume("once"); err != nil || c != ConsumeOnce {
		t.Fatalf("ParseConsume(once) = %v, %v", c, err)
	}
	if _, err := ParseConsume("latest"); err == nil {
		t.Fatalf("ParseConsume(latest): expected error")
	}
	if o, err := ParseOffsetPolicy("explicit"); err != nil || o != OffsetsExplicit {
		t.Fatalf("ParseOffsetPolicy(explicit) = %v, %v", o, err)
	}
	if _, err := ParseOffsetPolicy("random"); err == nil {
		t.Fatalf("ParseOffsetPolicy(random): expected error")
	}
}
