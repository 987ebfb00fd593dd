package tasks

import (
	"fmt"
	"io"
	"sync"

	"superloop/internal/sched"
)

// Heartbeat prints the current tick, one line per run.
type Heartbeat struct {
	mu     sync.Mutex
	W      io.Writer
	Prefix string
	errs   uint64
}

func (h *Heartbeat) Run(now sched.Tick) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prefix := h.Prefix
	if prefix == "" {
		prefix = "tick"
	}
	if _, err := fmt.Fprintf(h.W, "%s %d\n", prefix, now); err != nil {
		h.errs++
	}
}

// WriteErrors returns how many lines failed to write.
func (h *Heartbeat) WriteErrors() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errs
}
