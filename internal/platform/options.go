package platform

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/audittrail/pkg/audit"
	"github.com/aretw0/audittrail/pkg/core"
)

// options holds the internal configuration of a Runtime.
type options struct {
	store      core.MutableStore
	sink       audit.Sink
	notifier   audit.Notifier
	logger     *slog.Logger
	registerer prometheus.Registerer
	tracer     trace.TracerProvider
	onError    func(error)
}

// Option defines a functional option for configuring a Runtime.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithStore injects a record store. If provided, the store settings are ignored.
func WithStore(store core.MutableStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithSink injects the audit sink. If provided, the sink settings are ignored.
func WithSink(sink audit.Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithNotifier sets the notifier alerted when a creation is vetoed.
// Defaults to a warning on the runtime logger.
func WithNotifier(n audit.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithLogger sets the logger for the runtime and every component it wires.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegisterer registers the engine counters with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithTracerProvider sets the provider used for handler spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp
	}
}

// WithWatcherErrorHandler registers a callback for errors raised while
// watching the filesystem store (unreadable files, fsnotify failures).
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}
