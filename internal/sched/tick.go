package sched

import "math"

// Tick is the scheduler time unit: one tick-source interrupt.
//
// The counter is fixed width and wraps. Compare ticks with Since or Reached,
// never with < or >.
type Tick = uint32

// MaxHyperperiod is the largest hyperperiod the builder accepts.
// Signed-difference comparisons are only valid within half the counter range.
const MaxHyperperiod Tick = math.MaxInt32

// Since returns now-then as a signed distance. It is correct across
// wraparound as long as the two values are within 2^31 ticks of each other.
func Since(now, then Tick) int32 {
	return int32(now - then)
}

// Reached reports whether now is at or past deadline.
func Reached(now, deadline Tick) bool {
	return Since(now, deadline) >= 0
}
