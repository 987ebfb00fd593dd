// Package tasks holds task bodies for the scheduler: the LED blink and tick
// print examples, a background checksum, a systemd watchdog kick, and a
// simulated load used to reproduce slice overruns.
//
// Bodies are short and run to completion. None of them block.
package tasks
