// Package sqlite keeps the custody document in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"custodycore/internal/infra/persistence/sqlstate"
	"custodycore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.DocumentStore = (*Store)(nil)

// DefaultPath is used when no path is configured.
const DefaultPath = "custody.db"

// Store is a sqlstate table in a local file.
type Store struct {
	*sqlstate.Table
	path string
}

// NewStore opens the file at path, creating parent directories and the state
// table as needed.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("sqlite: create dirs: %w", err)
	}
	// one writer at a time; concurrent writers would see SQLITE_BUSY
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	table, err := sqlstate.Open(context.Background(), db, sqlstate.SQLite)
	if err != nil {
		return nil, err
	}
	return &Store{Table: table, path: path}, nil
}

// Driver returns the storage driver identifier.
func (s *Store) Driver() domain.StorageDriver { return domain.StorageSQLite }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }
