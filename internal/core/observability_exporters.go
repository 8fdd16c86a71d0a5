package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq atomic.Uint64

// OperationStats aggregates every observation of one custody operation.
type OperationStats struct {
	Calls   int64   `json:"calls"`
	Errors  int64   `json:"errors"`
	TotalMS float64 `json:"total_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// ExpvarSnapshot is what an ExpvarMetricsRecorder publishes.
type ExpvarSnapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	TakenAt    time.Time                 `json:"taken_at"`
}

// ExpvarMetricsRecorder keeps OperationStats per operation and exposes them
// through /debug/vars. It is the lightweight alternative to the Prometheus
// recorder when CUSTODY_METRICS_BACKEND=expvar.
type ExpvarMetricsRecorder struct {
	varName string
	lock    sync.Mutex
	ops     map[string]*OperationStats
}

// NewExpvarMetricsRecorder publishes a recorder under varName. An empty
// varName picks custody_ops_<n>; expvar panics on duplicate names.
func NewExpvarMetricsRecorder(varName string) *ExpvarMetricsRecorder {
	if varName == "" {
		varName = fmt.Sprintf("custody_ops_%d", expvarSeq.Add(1))
	}
	rec := &ExpvarMetricsRecorder{varName: varName, ops: map[string]*OperationStats{}}
	expvar.Publish(varName, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

func (r *ExpvarMetricsRecorder) Name() string { return r.varName }

// Snapshot returns a copy of the per-operation stats.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarSnapshot {
	r.lock.Lock()
	defer r.lock.Unlock()
	snap := ExpvarSnapshot{Operations: make(map[string]OperationStats, len(r.ops)), TakenAt: time.Now().UTC()}
	for op, st := range r.ops {
		snap.Operations[op] = *st
	}
	return snap
}

// Observe implements MetricsRecorder. Observations without an operation name
// are dropped.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	r.lock.Lock()
	defer r.lock.Unlock()
	st := r.ops[operation]
	if st == nil {
		st = &OperationStats{}
		r.ops[operation] = st
	}
	st.Calls++
	if !success {
		st.Errors++
	}
	st.TotalMS += ms
	st.MaxMS = max(st.MaxMS, ms)
}

// SpanRecord is one finished operation span as written by JSONTracer.
type SpanRecord struct {
	Op      string    `json:"op"`
	OK      bool      `json:"ok"`
	Err     string    `json:"err,omitempty"`
	Start   time.Time `json:"start"`
	Elapsed string    `json:"elapsed"`
}

// JSONTracer appends finished spans to a JSON-lines sink, e.g. the file named
// by CUSTODY_TRACE_FILE. The last spans are also kept in memory.
type JSONTracer struct {
	lock   sync.Mutex
	sink   io.Writer
	keep   int
	recent []SpanRecord
}

// NewJSONTracer writes to sink; a nil sink keeps spans in memory only.
func NewJSONTracer(sink io.Writer) *JSONTracer {
	return &JSONTracer{sink: sink, keep: 256}
}

// Recent returns the retained spans, oldest first.
func (t *JSONTracer) Recent() []SpanRecord {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]SpanRecord(nil), t.recent...)
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, op: operation, start: time.Now().UTC()}
}

type jsonSpan struct {
	tracer *JSONTracer
	op     string
	start  time.Time
}

func (s *jsonSpan) End(err error) { s.tracer.finish(s.op, s.start, err) }

func (t *JSONTracer) finish(op string, start time.Time, err error) {
	rec := SpanRecord{Op: op, OK: err == nil, Start: start, Elapsed: time.Since(start).String()}
	if err != nil {
		rec.Err = err.Error()
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.recent) == t.keep {
		t.recent = t.recent[1:]
	}
	t.recent = append(t.recent, rec)
	if t.sink == nil {
		return
	}
	if line, mErr := json.Marshal(rec); mErr == nil {
		_, _ = t.sink.Write(append(line, '\n'))
	}
}

// LogAuditRecorder turns audit entries into log lines: successes at info and
// failures at warn.
type LogAuditRecorder struct {
	log Logger
}

func NewLogAuditRecorder(log Logger) *LogAuditRecorder {
	if log == nil {
		log = noopLogger{}
	}
	return &LogAuditRecorder{log: log}
}

// Record implements AuditRecorder.
func (r *LogAuditRecorder) Record(_ context.Context, e AuditEntry) {
	fields := []any{"op", e.Operation, "entity", e.Entity, "entity_id", e.EntityID, "action", e.Action, "took", e.Duration}
	if e.Status == AuditStatusError {
		r.log.Warn("custody audit failed", append(fields, "error", e.Error)...)
		return
	}
	r.log.Info("custody audit", fields...)
}
