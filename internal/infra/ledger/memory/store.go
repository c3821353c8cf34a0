// Package memory keeps the run ledger in process memory.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"interdiag/internal/ledger/core"
)

// Store implements core.Store.
type Store struct {
	mu   sync.RWMutex
	runs map[string]core.Run
}

// New returns an empty ledger.
func New() *Store { return &Store{runs: make(map[string]core.Run)} }

// Record inserts or replaces run.
func (s *Store) Record(_ context.Context, run core.Run) error {
	if run.ID == "" {
		return fmt.Errorf("record run: empty id")
	}
	s.mu.Lock()
	s.runs[run.ID] = clone(run)
	s.mu.Unlock()
	return nil
}

// Get returns the run with id.
func (s *Store) Get(_ context.Context, id string) (core.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return core.Run{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return clone(run), nil
}

// List returns up to limit runs, newest first; limit <= 0 means all.
func (s *Store) List(_ context.Context, limit int) ([]core.Run, error) {
	s.mu.RLock()
	out := make([]core.Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, clone(r))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func clone(r core.Run) core.Run {
	r.Inputs = slices.Clone(r.Inputs)
	r.Warnings = slices.Clone(r.Warnings)
	r.Artifacts = slices.Clone(r.Artifacts)
	return r
}
