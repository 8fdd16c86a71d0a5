// Package sqlfake registers an in-memory database/sql driver that understands
// the statements issued against the state table: CREATE TABLE, INSERT with or
// without an upsert clause, and SELECT of a column list. Used by backend tests
// that cannot reach a real server.
package sqlfake

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync/atomic"
)

var seq atomic.Uint64

// Conn records statements and keeps rows per table. Fail* toggles inject
// errors into the matching driver call.
type Conn struct {
	Execs      []string
	Tables     map[string][]map[string]any
	FailPing   bool
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	FailTables map[string]bool
	RowsErr    error
	Commits    int
	Rollbacks  int
}

// Open registers a fresh driver and returns a single-connection pool on it.
func Open() (*sql.DB, *Conn) {
	conn := &Conn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("sqlfake%d", seq.Add(1))
	sql.Register(name, fakeDriver{conn: conn})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	db.SetMaxOpenConns(1)
	return db, conn
}

type fakeDriver struct{ conn *Conn }

func (d fakeDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

var (
	insertRe = regexp.MustCompile(`(?is)^\s*insert\s+into\s+(\w+)\s*\(([^)]*)\)`)
	upsertRe = regexp.MustCompile(`(?is)\bon\s+(conflict|duplicate\s+key)\b`)
	selectRe = regexp.MustCompile(`(?is)^\s*select\s+(.+?)\s+from\s+(\w+)`)

	errUnsupported = errors.New("sqlfake: statement not supported")
)

func (c *Conn) Prepare(string) (driver.Stmt, error) { return nil, errUnsupported }
func (c *Conn) Close() error                        { return nil }

func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *Conn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("sqlfake: ping failed")
	}
	return nil
}

func (c *Conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("sqlfake: begin failed")
	}
	return fakeTx{conn: c}, nil
}

// ExecContext stores INSERT rows; other statements are only recorded. An
// upsert replaces any row sharing the first column's value.
func (c *Conn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("sqlfake: exec failed")
	}
	m := insertRe.FindStringSubmatch(query)
	if m == nil {
		return driver.RowsAffected(0), nil
	}
	table, cols := strings.ToLower(m[1]), columns(m[2])
	if c.FailTables[table] {
		return nil, fmt.Errorf("sqlfake: exec on %s failed", table)
	}
	if len(cols) != len(args) {
		return nil, fmt.Errorf("sqlfake: %d columns but %d args", len(cols), len(args))
	}
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = args[i].Value
	}
	if upsertRe.MatchString(query) {
		kept := c.Tables[table][:0]
		for _, existing := range c.Tables[table] {
			if existing[cols[0]] != row[cols[0]] {
				kept = append(kept, existing)
			}
		}
		c.Tables[table] = kept
	}
	c.Tables[table] = append(c.Tables[table], row)
	return driver.RowsAffected(1), nil
}

func (c *Conn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	m := selectRe.FindStringSubmatch(query)
	if m == nil {
		return nil, errUnsupported
	}
	table, cols := strings.ToLower(m[2]), columns(m[1])
	if c.FailTables[table] {
		return nil, fmt.Errorf("sqlfake: query on %s failed", table)
	}
	out := &fakeRows{cols: cols, err: c.RowsErr}
	for _, row := range c.Tables[table] {
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		out.rows = append(out.rows, vals)
	}
	return out, nil
}

func columns(raw string) []string {
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return parts
}

type fakeTx struct{ conn *Conn }

func (t fakeTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("sqlfake: commit failed")
	}
	t.conn.Commits++
	return nil
}

func (t fakeTx) Rollback() error {
	t.conn.Rollbacks++
	return nil
}

type fakeRows struct {
	cols []string
	rows [][]driver.Value
	next int
	err  error
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}
