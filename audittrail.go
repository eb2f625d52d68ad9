package audittrail

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/audittrail/internal/platform"
	"github.com/aretw0/audittrail/pkg/audit"
	"github.com/aretw0/audittrail/pkg/core"
)

// Version exposes the version of the library.
// See version.go for the implementation using go:embed.

// --- Types ---

// Runtime is a wired audit trail: bus, engine, store and mutation service.
type Runtime = platform.Runtime

// Settings is the content of a .audittrail.yaml file.
type Settings = platform.Settings

// Config holds the audit switches.
type Config = audit.Config

// Script is a replayable sequence of mutations.
type Script = platform.Script

// --- Configuration ---

// Option defines a functional option for configuring a Runtime.
type Option = platform.Option

// WithStore injects a record store.
func WithStore(store core.MutableStore) Option {
	return platform.WithStore(store)
}

// WithSink injects the destination of audit lines.
func WithSink(sink audit.Sink) Option {
	return platform.WithSink(sink)
}

// WithNotifier sets the notifier alerted when a creation is vetoed.
func WithNotifier(n audit.Notifier) Option {
	return platform.WithNotifier(n)
}

// WithLogger sets the logger for the runtime.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRegisterer registers the audit counters with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return platform.WithRegisterer(reg)
}

// WithTracerProvider sets the provider used for handler spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return platform.WithTracerProvider(tp)
}

// WithWatcherErrorHandler registers a callback for filesystem watcher errors.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// DefaultSettings returns the settings used when no file is found.
func DefaultSettings() Settings {
	return platform.DefaultSettings()
}

// LoadSettings reads a settings file on top of the defaults.
func LoadSettings(path string) (Settings, error) {
	return platform.LoadSettings(path)
}

// --- Factory ---

// New creates a Runtime from settings.
func New(ctx context.Context, settings Settings, opts ...Option) (*Runtime, error) {
	return platform.New(ctx, settings, opts...)
}
