// Package sched is a cooperative, tick-driven periodic task scheduler.
//
// The model is a bare-metal superloop:
//   - a tick source calls Scheduler.Tick once per tick (interrupt context)
//   - Scheduler.Run is the dispatcher (normal context); it sleeps until a tick
//     makes something due, then runs task bodies to completion
//   - the only state shared between the two is the tick counter and per-task
//     due state, both accessed through one short critical section
//
// Three dispatch modes are supported:
//   - ModePending: the tick handler counts owed runs per task (saturating)
//   - ModePhase:   tasks carry next_due; the dispatcher compares it to now
//   - ModeSlot:    a static table spanning one hyperperiod is replayed in order
//
// Registration and Build happen at startup. Nothing on the Tick/Run path
// allocates.
package sched
