// Package postgres is the shared ledger backend, using pgx through
// database/sql.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"interdiag/internal/infra/ledger/sqlstore"
)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/interdiag?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var dialect = sqlstore.Dialect{
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			started_at BIGINT NOT NULL,
			payload JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at)`,
	},
	Upsert: `INSERT INTO runs(id, status, started_at, payload) VALUES($1, $2, $3, $4)
		ON CONFLICT(id) DO UPDATE SET status=EXCLUDED.status, started_at=EXCLUDED.started_at, payload=EXCLUDED.payload`,
	Get:  `SELECT payload FROM runs WHERE id = $1`,
	List: `SELECT payload FROM runs ORDER BY started_at DESC, id ASC LIMIT $1`,
}

// Open connects to dsn (defaultDSN when empty) and applies the schema.
func Open(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store, err := sqlstore.New(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OverrideSQLOpen swaps the opener for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
