// Package audit observes record mutations and writes a human-readable audit
// trail for the ones worth reporting.
//
// The engine is built from small pure pieces (Diff, ShouldEmitHeader and the
// Format functions) composed by one handler per event kind. Configure binds
// the enabled handlers to an event bus. Handlers run synchronously on the
// goroutine that raised the event and keep no state between calls.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/audittrail/pkg/core"
)

// ErrContractViolation is wrapped by the panics raised when the event bus
// hands a handler a payload that breaks its contract.
var ErrContractViolation = errors.New("audit: event contract violated")

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Errorf("%w: "+format, append([]any{ErrContractViolation}, args...)...))
	}
}

// Sink is the destination of audit lines.
type Sink interface {
	WriteLine(ctx context.Context, message, actingUser string) error
}

// Notifier surfaces user-facing rejections, such as a vetoed creation.
type Notifier interface {
	Alert(ctx context.Context, actor core.Actor, message string)
}

const instrumentationName = "github.com/aretw0/audittrail/pkg/audit"

// Engine holds the collaborators shared by all handlers.
type Engine struct {
	store    core.RecordStore
	sink     Sink
	config   Config
	logger   *slog.Logger
	metrics  *Metrics
	notifier Notifier
	tracer   trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for diagnostics (not for audit lines).
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the counters updated by the handlers.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithNotifier sets where creation vetoes are surfaced to the user.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithTracerProvider sets the provider of the per-event spans.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// NewEngine creates an engine reading records from store and writing lines to sink.
func NewEngine(store core.RecordStore, sink Sink, config Config, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		sink:    sink,
		config:  config,
		logger:  slog.New(slog.DiscardHandler),
		metrics: NewMetrics(nil),
		tracer:  otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.config
}

// Metrics returns the engine counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

func (e *Engine) emit(ctx context.Context, actor core.Actor, kind core.EventKind, line string) error {
	if err := e.sink.WriteLine(ctx, line, actor.Name()); err != nil {
		return fmt.Errorf("failed to write audit line: %w", err)
	}
	e.metrics.Lines.WithLabelValues(string(kind)).Inc()
	return nil
}

// audited applies the store scoping rule and records ignored events.
func (e *Engine) audited(kind core.EventKind, rec *core.Record) bool {
	if e.config.ShouldAudit(rec) {
		return true
	}
	e.metrics.Ignored.WithLabelValues(string(kind)).Inc()
	e.logger.Debug("event ignored outside primary store", "kind", kind, "store", storeOf(rec))
	return false
}
