package core

import (
	"context"
	"time"

	"custodycore/internal/reporting"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Logger is the structured key/value logger used by the store and service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus captures the outcome of an audited mutation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one service mutation.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives an entry for every mutating service call.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes operation outcomes and latency.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Option configures a Store or a Service. Options that only concern one of
// them are ignored by the other.
type Option func(*options)

type options struct {
	clock             Clock
	logger            Logger
	audit             AuditRecorder
	metrics           MetricsRecorder
	tracer            Tracer
	locker            Locker
	engine            *RulesEngine
	phoneRegion       string
	lowStockThreshold int
	movementLimit     int
	linkTTL           time.Duration
}

func defaultOptions() options {
	return options{
		audit:             noopAuditRecorder{},
		metrics:           noopMetricsRecorder{},
		tracer:            noopTracer{},
		locker:            NewLocalLocker(),
		phoneRegion:       "CA",
		lowStockThreshold: reporting.DefaultLowStockThreshold,
		movementLimit:     DefaultMovementLimit,
		linkTTL:           DefaultLinkTTL,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder sets the audit sink for mutations.
func WithAuditRecorder(audit AuditRecorder) Option {
	return func(o *options) {
		if audit != nil {
			o.audit = audit
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(metrics MetricsRecorder) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithLocker sets the lock guarding signature consumption across sessions.
func WithLocker(locker Locker) Option {
	return func(o *options) {
		if locker != nil {
			o.locker = locker
		}
	}
}

// WithRulesEngine replaces the default invariant rules.
func WithRulesEngine(engine *RulesEngine) Option {
	return func(o *options) { o.engine = engine }
}

// WithPhoneRegion sets the default region used to normalise phone numbers.
func WithPhoneRegion(region string) Option {
	return func(o *options) {
		if region != "" {
			o.phoneRegion = region
		}
	}
}

// WithLowStockThreshold sets the default low-stock threshold.
func WithLowStockThreshold(threshold int) Option {
	return func(o *options) {
		if threshold > 0 {
			o.lowStockThreshold = threshold
		}
	}
}

// WithMovementLimit sets the default page size of GetInventoryMovements.
func WithMovementLimit(limit int) Option {
	return func(o *options) {
		if limit > 0 {
			o.movementLimit = limit
		}
	}
}

// WithLinkTTL sets how far in the future signature links expire.
func WithLinkTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.linkTTL = ttl
		}
	}
}
