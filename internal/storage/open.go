package storage

import (
	"context"
	"fmt"
	"strings"

	logx "superloop/pkg/logx"
)

// Store is the persistence API used by the app and the CLI.
type Store interface {
	AppendIncident(ctx context.Context, in Incident) error
	// RecentIncidents returns up to limit incidents, newest first.
	RecentIncidents(ctx context.Context, limit int) ([]Incident, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Retain <= 0 {
		cfg.Retain = DefaultRetain
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
