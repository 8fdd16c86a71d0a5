// Package mysql keeps the custody document in a MySQL or MariaDB state table.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"custodycore/internal/infra/persistence/sqlstate"
	"custodycore/pkg/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

const DefaultDSN = "root@tcp(localhost:3306)/custody"

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a sqlstate table on a MySQL server.
type Store struct {
	*sqlstate.Table
}

// NewStore parses dsn (DefaultDSN when empty), forces parseTime and a dial
// timeout, pings the server and ensures the state table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse dsn: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	openMu.Lock()
	db, err := sqlOpen("mysql", cfg.FormatDSN())
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	table, err := sqlstate.Open(ctx, db, sqlstate.MySQL)
	if err != nil {
		return nil, err
	}
	return &Store{Table: table}, nil
}

// Driver returns the storage driver identifier.
func (s *Store) Driver() domain.StorageDriver { return domain.StorageMySQL }

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
