// Package sqlstore persists ledger runs through database/sql as JSON
// payloads keyed by run ID. Drivers supply the dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"interdiag/internal/ledger/core"
)

// Dialect holds the driver specific statements. Upsert binds
// (id, status, started_at, payload); Get binds id; List binds limit.
type Dialect struct {
	Schema []string
	Upsert string
	Get    string
	List   string
}

// Store implements core.Store on a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New applies the dialect schema and returns the store.
func New(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	for _, stmt := range d.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: db, dialect: d}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Record upserts run.
func (s *Store) Record(ctx context.Context, run core.Run) error {
	if run.ID == "" {
		return errors.New("record run: empty id")
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.Upsert, run.ID, string(run.Status), run.StartedAt.UTC().UnixNano(), payload); err != nil {
		return fmt.Errorf("upsert run %s: %w", run.ID, err)
	}
	return nil
}

// Get loads one run.
func (s *Store) Get(ctx context.Context, id string) (core.Run, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.dialect.Get, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Run{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Run{}, fmt.Errorf("select run %s: %w", id, err)
	}
	return decode(payload)
}

// List returns runs newest first; limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]core.Run, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.List, limit)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []core.Run
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func decode(payload []byte) (core.Run, error) {
	var run core.Run
	if err := json.Unmarshal(payload, &run); err != nil {
		return core.Run{}, fmt.Errorf("decode run: %w", err)
	}
	if !run.StartedAt.IsZero() {
		run.StartedAt = run.StartedAt.In(time.UTC)
	}
	return run, nil
}
