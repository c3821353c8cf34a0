// Package ledger records pipeline runs. It re-exports the core record types
// and opens the configured backend.
package ledger

import (
	"context"
	"fmt"

	"interdiag/internal/config"
	inframemory "interdiag/internal/infra/ledger/memory"
	"interdiag/internal/infra/ledger/postgres"
	"interdiag/internal/infra/ledger/sqlite"
	"interdiag/internal/ledger/core"
)

type (
	Run    = core.Run
	Status = core.Status
	Store  = core.Store
)

const (
	StatusRunning   = core.StatusRunning
	StatusSucceeded = core.StatusSucceeded
	StatusFailed    = core.StatusFailed
)

var ErrNotFound = core.ErrNotFound

// Open returns the ledger selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Ledger) (Store, error) {
	switch cfg.Driver {
	case "memory", "":
		return inframemory.New(), nil
	case "sqlite":
		return sqlite.Open(ctx, cfg.SQLitePath)
	case "postgres":
		return postgres.Open(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() Store { return inframemory.New() }
