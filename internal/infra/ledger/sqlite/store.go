// Package sqlite is the embedded ledger backend (pure Go modernc driver).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"interdiag/internal/infra/ledger/sqlstore"
)

var dialect = sqlstore.Dialect{
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at)`,
	},
	Upsert: `INSERT INTO runs(id, status, started_at, payload) VALUES(?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status, started_at=excluded.started_at, payload=excluded.payload`,
	Get:  `SELECT payload FROM runs WHERE id = ?`,
	List: `SELECT payload FROM runs ORDER BY started_at DESC, id ASC LIMIT ?`,
}

// Open creates (or reuses) the database at path.
func Open(ctx context.Context, path string) (*sqlstore.Store, error) {
	if path == "" {
		path = "interdiag.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps concurrent watch-mode runs from hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	store, err := sqlstore.New(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
