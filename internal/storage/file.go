package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "superloop/pkg/logx"
)

// fileStore appends incidents to <prefix>.incidents.jsonl.
//
// When the file holds twice Retain lines it is rewritten with the newest
// Retain.
type fileStore struct {
	log    logx.Logger
	path   string
	retain int

	mu    sync.Mutex
	f     *os.File
	lines int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	incPath := filepath.Join(dir, base) + ".incidents.jsonl"

	existing, err := readIncidents(incPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	f, err := os.OpenFile(incPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: incPath, retain: cfg.Retain, f: f, lines: len(existing)}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendIncident(ctx context.Context, in Incident) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("incident file closed")
	}
	if err := json.NewEncoder(s.f).Encode(in); err != nil {
		return err
	}
	s.lines++
	if s.lines >= 2*s.retain {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("incident compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentIncidents(ctx context.Context, limit int) ([]Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	all, err := readIncidents(s.path)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return newestFirst(all, limit), nil
}

func (s *fileStore) compactLocked() error {
	all, err := readIncidents(s.path)
	if err != nil {
		return err
	}
	if len(all) > s.retain {
		all = all[len(all)-s.retain:]
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, in := range all {
		if err := enc.Encode(in); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}

	// Reopen: the old handle points at the replaced inode.
	nf, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	_ = s.f.Close()
	s.f = nf
	s.lines = len(all)
	return nil
}

func readIncidents(path string) ([]Incident, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Incident
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var in Incident
		if err := json.Unmarshal(sc.Bytes(), &in); err != nil {
			// Torn tail line after a crash.
			continue
		}
		out = append(out, in)
	}
	return out, sc.Err()
}

func newestFirst(all []Incident, limit int) []Incident {
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]Incident, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out
}
