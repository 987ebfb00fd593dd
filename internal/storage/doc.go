// Package storage persists scheduler incidents (slice overruns and pending
// saturation) so they survive restarts and can be listed later.
//
// Two drivers exist: "file" (JSON Lines) and "sqlite" (modernc.org/sqlite,
// no cgo).
package storage
