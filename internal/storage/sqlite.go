package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "superloop/pkg/logx"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db     *sql.DB
	log    logx.Logger
	retain int

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, retain: cfg.Retain, pruneEvery: 500}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendIncident(ctx context.Context, in Incident) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if in.At.IsZero() {
		in.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO incidents(run_id, at, kind, task, handle, tick, measured, budget)
		 VALUES(?,?,?,?,?,?,?,?)`,
		in.RunID, in.At.UTC().Format(time.RFC3339Nano), in.Kind, in.Task, in.Handle,
		int64(in.Tick), int64(in.Measured), int64(in.Budget),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		if perr := s.prune(pctx); perr != nil {
			s.log.Debug("incident prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (s *sqliteStore) RecentIncidents(ctx context.Context, limit int) ([]Incident, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = s.retain
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, at, kind, task, handle, tick, measured, budget
		 FROM incidents ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		var in Incident
		var at string
		var tick, measured, budget int64
		if err := rows.Scan(&in.RunID, &at, &in.Kind, &in.Task, &in.Handle, &tick, &measured, &budget); err != nil {
			return nil, err
		}
		in.At, _ = time.Parse(time.RFC3339Nano, at)
		in.Tick, in.Measured, in.Budget = uint32(tick), uint32(measured), uint32(budget)
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *sqliteStore) prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM incidents WHERE id <= (SELECT COALESCE(MAX(id), 0) FROM incidents) - ?`, s.retain)
	return err
}
