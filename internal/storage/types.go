package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file next to Path
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// Retain caps how many incidents are kept. 0 means DefaultRetain.
	Retain int
}

// DefaultRetain is the incident retention when Config.Retain is 0.
const DefaultRetain = 10000

// Incident kinds.
const (
	KindOverrun    = "overrun"
	KindSaturation = "saturation"
)

// Incident is one runtime condition reported by the dispatcher.
// Keep it compact and schema-stable.
type Incident struct {
	RunID    string    `json:"run_id"`
	At       time.Time `json:"at"`
	Kind     string    `json:"kind"`
	Task     string    `json:"task"`
	Handle   int       `json:"handle"`
	Tick     uint32    `json:"tick"`
	Measured uint32    `json:"measured,omitempty"`
	Budget   uint32    `json:"budget,omitempty"`
}
