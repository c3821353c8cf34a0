// Package core defines run ledger records and the store contract shared by
// the ledger drivers.
package core

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run records one pipeline execution.
type Run struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Inputs     []string  `json:"inputs,omitempty"`
	Residues   int       `json:"residues"`
	Pairs      int       `json:"pairs"`
	HBonds     int       `json:"hbonds"`
	Warnings   []string  `json:"warnings,omitempty"`
	Artifacts  []string  `json:"artifacts,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Duration is zero while the run is in progress.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists runs. Record inserts or replaces by ID; List returns the
// most recently started runs first.
type Store interface {
	Record(ctx context.Context, run Run) error
	Get(ctx context.Context, id string) (Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("run not found")
