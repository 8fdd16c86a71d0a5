package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"custodycore/internal/infra/persistence/memory"
)

var fixedNow = time.Date(2024, 10, 1, 8, 30, 0, 0, time.UTC)

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type auditRecorderStub struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *auditRecorderStub) Record(_ context.Context, e AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *auditRecorderStub) snapshot() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditEntry(nil), r.entries...)
}

type capturedLog struct {
	level string
	msg   string
	kv    []any
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []capturedLog
}

func (l *recordingLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, capturedLog{level: level, msg: msg, kv: kv})
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.add("debug", msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.add("info", msg, kv) }
func (l *recordingLogger) Warn(msg string, kv ...any)  { l.add("warn", msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.add("error", msg, kv) }

func (l *recordingLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if line.level == level && line.msg == msg {
			n++
		}
	}
	return n
}

// newTestService returns a service over a fresh memory backend with a clock
// that advances one minute per reading.
func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	backend := memory.NewStore()
	clock := &steppingClock{now: fixedNow}
	opts = append([]Option{WithClock(clock)}, opts...)
	store := NewStore(context.Background(), backend, opts...)
	return NewService(store, opts...), backend
}

func stockOf(t *testing.T, svc *Service, item, size string) int {
	t.Helper()
	inv, ok := svc.GetInventoryItem(item)
	if !ok {
		t.Fatalf("item %s not in catalog", item)
	}
	qty, ok := inv.Sizes[size]
	if !ok {
		t.Fatalf("size %s not tracked for %s", size, item)
	}
	return qty
}

func addEmployee(t *testing.T, svc *Service, name string) Employee {
	t.Helper()
	e, err := svc.AddEmployee(context.Background(), EmployeeInput{Name: name})
	if err != nil {
		t.Fatalf("add employee %s: %v", name, err)
	}
	return e
}
