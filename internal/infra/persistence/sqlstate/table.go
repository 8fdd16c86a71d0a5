// Package sqlstate stores the custody document in a two column `state` table
// (bucket, payload) through database/sql. The sqlite, postgres and mysql
// backends differ only in their Dialect.
package sqlstate

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"custodycore/internal/infra/persistence/snapshot"
	"custodycore/pkg/domain"
)

// Dialect holds the statements one SQL engine needs for the state table.
type Dialect struct {
	Name string
	// DDL creates the table when missing.
	DDL string
	// Upsert writes one (bucket, payload) row, replacing an existing bucket.
	Upsert string
}

var (
	SQLite = Dialect{
		Name:   "sqlite",
		DDL:    `CREATE TABLE IF NOT EXISTS state (bucket TEXT PRIMARY KEY, payload BLOB NOT NULL)`,
		Upsert: `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
	}
	Postgres = Dialect{
		Name:   "postgres",
		DDL:    `CREATE TABLE IF NOT EXISTS state (bucket TEXT PRIMARY KEY, payload JSONB NOT NULL)`,
		Upsert: `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`,
	}
	MySQL = Dialect{
		Name:   "mysql",
		DDL:    `CREATE TABLE IF NOT EXISTS state (bucket VARCHAR(64) PRIMARY KEY, payload LONGBLOB NOT NULL)`,
		Upsert: `INSERT INTO state(bucket,payload) VALUES(?,?) ON DUPLICATE KEY UPDATE payload=VALUES(payload)`,
	}
)

const selectAll = `SELECT bucket, payload FROM state`

// Table reads and writes the state rows of one database.
type Table struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.Mutex
}

// Open ensures the state table exists. The Table owns db from here on; on
// error db is closed.
func Open(ctx context.Context, db *sql.DB, dialect Dialect) (*Table, error) {
	if _, err := db.ExecContext(ctx, dialect.DDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ensure state table: %w", dialect.Name, err)
	}
	return &Table{db: db, dialect: dialect}, nil
}

// Load rebuilds the document from every bucket row. An empty table reports
// domain.ErrNoDocument.
func (t *Table) Load(ctx context.Context) (domain.Document, error) {
	rows, err := t.db.QueryContext(ctx, selectAll)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%s: select state: %w", t.dialect.Name, err)
	}
	defer func() { _ = rows.Close() }()
	raw := make(map[string][]byte)
	for rows.Next() {
		var (
			bucket  string
			payload []byte
		)
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.Document{}, fmt.Errorf("%s: scan state: %w", t.dialect.Name, err)
		}
		raw[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return domain.Document{}, fmt.Errorf("%s: iterate state: %w", t.dialect.Name, err)
	}
	return snapshot.DecodeBuckets(raw)
}

// Save upserts every bucket in one SQL transaction so readers never see a
// half-written document.
func (t *Table) Save(ctx context.Context, doc domain.Document) (err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	payloads, err := snapshot.EncodeBuckets(doc)
	if err != nil {
		return err
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", t.dialect.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range snapshot.Buckets {
		if _, err = tx.ExecContext(ctx, t.dialect.Upsert, bucket, payloads[bucket]); err != nil {
			return fmt.Errorf("%s: upsert %s: %w", t.dialect.Name, bucket, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", t.dialect.Name, err)
	}
	return nil
}

// DB exposes the connection pool for tests and maintenance.
func (t *Table) DB() *sql.DB { return t.db }

// Close releases the connection pool.
func (t *Table) Close() error { return t.db.Close() }
