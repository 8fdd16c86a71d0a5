package sqlstate

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"custodycore/internal/infra/persistence/sqlstate/sqlfake"
	"custodycore/pkg/domain"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

func sampleDocument() domain.Document {
	return domain.Document{
		Employees: []domain.Employee{{ID: "EMP001", Name: "Frank Etoa", Active: true}},
		Inventory: []domain.InventoryItem{{ID: "5", Name: "Tuque", Price: decimal.NewFromInt(8), Sizes: map[string]int{"Unique": 60}}},
	}
}

func TestTableRoundTripPerDialect(t *testing.T) {
	for _, dialect := range []Dialect{SQLite, Postgres, MySQL} {
		t.Run(dialect.Name, func(t *testing.T) {
			ctx := context.Background()
			db, conn := sqlfake.Open()
			table, err := Open(ctx, db, dialect)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			t.Cleanup(func() { _ = table.Close() })
			if len(conn.Execs) != 1 || conn.Execs[0] != dialect.DDL {
				t.Fatalf("expected DDL first, got %v", conn.Execs)
			}
			if _, err := table.Load(ctx); !errors.Is(err, domain.ErrNoDocument) {
				t.Fatalf("expected ErrNoDocument, got %v", err)
			}
			for i := 0; i < 2; i++ {
				if err := table.Save(ctx, sampleDocument()); err != nil {
					t.Fatalf("save %d: %v", i, err)
				}
			}
			if rows := len(conn.Tables["state"]); rows != 5 {
				t.Fatalf("expected one row per bucket, got %d", rows)
			}
			if conn.Commits != 2 || conn.Rollbacks != 0 {
				t.Fatalf("unexpected tx counts commits=%d rollbacks=%d", conn.Commits, conn.Rollbacks)
			}
			got, err := table.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(got.Employees) != 1 || got.Inventory[0].Sizes["Unique"] != 60 {
				t.Fatalf("unexpected document %+v", got)
			}
		})
	}
}

func TestTableSaveFailures(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name     string
		arm      func(*sqlfake.Conn)
		expect   string
		rollback bool
	}{
		{"begin", func(c *sqlfake.Conn) { c.FailBegin = true }, "begin", false},
		{"upsert", func(c *sqlfake.Conn) { c.FailTables = map[string]bool{"state": true} }, "upsert employees", true},
		// database/sql ends the tx when Commit fails, so no driver rollback follows.
		{"commit", func(c *sqlfake.Conn) { c.FailCommit = true }, "commit", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, conn := sqlfake.Open()
			table, err := Open(ctx, db, Postgres)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			t.Cleanup(func() { _ = table.Close() })
			tc.arm(conn)
			err = table.Save(ctx, domain.Document{})
			if err == nil || !strings.Contains(err.Error(), tc.expect) {
				t.Fatalf("expected %q failure, got %v", tc.expect, err)
			}
			if tc.rollback && conn.Rollbacks == 0 {
				t.Fatalf("expected rollback after failure")
			}
			if conn.Commits != 0 {
				t.Fatalf("failed save must not commit, got %d commits", conn.Commits)
			}
		})
	}
}

func TestTableLoadFailures(t *testing.T) {
	ctx := context.Background()
	db, conn := sqlfake.Open()
	table, err := Open(ctx, db, MySQL)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = table.Close() })
	if err := table.Save(ctx, sampleDocument()); err != nil {
		t.Fatalf("save: %v", err)
	}
	conn.RowsErr = errors.New("connection reset")
	if _, err := table.Load(ctx); err == nil || !strings.Contains(err.Error(), "iterate") {
		t.Fatalf("expected iterate error, got %v", err)
	}
	conn.RowsErr = nil
	conn.FailTables = map[string]bool{"state": true}
	if _, err := table.Load(ctx); err == nil || !strings.Contains(err.Error(), "select") {
		t.Fatalf("expected select error, got %v", err)
	}
}

func TestOpenFailsWhenDDLFails(t *testing.T) {
	db, conn := sqlfake.Open()
	conn.FailExec = true
	if _, err := Open(context.Background(), db, SQLite); err == nil {
		t.Fatalf("expected DDL failure")
	}
}

func TestSQLiteDialectAgainstRealEngine(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	ctx := context.Background()
	table, err := Open(ctx, db, SQLite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = table.Close() })
	for i := 0; i < 2; i++ {
		if err := table.Save(ctx, sampleDocument()); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	var n int
	if err := table.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM state`).Scan(&n); err != nil || n != 5 {
		t.Fatalf("expected 5 rows, got %d err=%v", n, err)
	}
	got, err := table.Load(ctx)
	if err != nil || got.Employees[0].Name != "Frank Etoa" {
		t.Fatalf("unexpected load %+v err=%v", got, err)
	}
}
