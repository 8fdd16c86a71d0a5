// Package postgres keeps the custody document in a PostgreSQL state table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"custodycore/internal/infra/persistence/sqlstate"
	"custodycore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

var _ domain.DocumentStore = (*Store)(nil)

const (
	driverName = "pgx"
	DefaultDSN = "postgres://localhost/custody?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a sqlstate table on a Postgres server.
type Store struct {
	*sqlstate.Table
}

// NewStore connects to dsn (DefaultDSN when empty), pings the server and
// ensures the state table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	table, err := sqlstate.Open(ctx, db, sqlstate.Postgres)
	if err != nil {
		return nil, err
	}
	return &Store{Table: table}, nil
}

// Driver returns the storage driver identifier.
func (s *Store) Driver() domain.StorageDriver { return domain.StoragePostgres }

// OverrideSQLOpen swaps the connection opener for tests and returns a restore
// function.
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
