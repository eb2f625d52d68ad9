package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/audittrail/pkg/adapters/fs"
	"github.com/aretw0/audittrail/pkg/adapters/memory"
	"github.com/aretw0/audittrail/pkg/audit"
	"github.com/aretw0/audittrail/pkg/bus"
	"github.com/aretw0/audittrail/pkg/core"
	"github.com/aretw0/audittrail/pkg/sink"
)

// Runtime is a fully wired audit trail: a bus the store mutations are raised
// on, the engine subscribed to it, and the service performing mutations.
type Runtime struct {
	Bus     *bus.Bus
	Engine  *audit.Engine
	Table   *audit.SubscriptionTable
	Service *core.Service
	Store   core.MutableStore

	sink     audit.Sink
	settings Settings
	logger   *slog.Logger
	clock    func() time.Time
	closers  []func() error
}

// New wires a Runtime from settings. Injected options take precedence over
// the store and sink settings.
func New(ctx context.Context, settings Settings, opts ...Option) (*Runtime, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	rt := &Runtime{settings: settings, logger: o.logger, clock: time.Now}

	store := o.store
	if store == nil {
		var err error
		if store, err = openStore(ctx, settings.Store, o); err != nil {
			return nil, err
		}
	}
	rt.Store = store

	lineSink := o.sink
	if lineSink == nil {
		var err error
		if lineSink, err = rt.openSink(ctx, settings.Sink); err != nil {
			rt.Close()
			return nil, err
		}
	}

	rt.sink = lineSink

	notifier := o.notifier
	if notifier == nil {
		notifier = sink.NewNotifier(o.logger)
	}

	engineOpts := []audit.Option{
		audit.WithLogger(o.logger),
		audit.WithNotifier(notifier),
		audit.WithMetrics(audit.NewMetrics(o.registerer)),
	}
	if o.tracer != nil {
		engineOpts = append(engineOpts, audit.WithTracerProvider(o.tracer))
	}

	rt.Bus = bus.New(o.logger)
	rt.Engine = audit.NewEngine(store, lineSink, settings.Audit, engineOpts...)
	rt.Table = rt.Engine.Configure(rt.Bus)
	rt.Service = core.NewService(store, rt.Bus)

	o.logger.Debug("runtime ready",
		"store", settings.Store.Adapter,
		"kinds", len(rt.Engine.State().(audit.EngineState).Kinds))
	return rt, nil
}

func openStore(ctx context.Context, s StoreSettings, o *options) (core.MutableStore, error) {
	switch s.Adapter {
	case "", "memory":
		return memory.New(), nil
	case "fs":
		if s.Path == "" {
			return nil, errors.New("the fs store needs a path")
		}
		repo := fs.NewRepository(fs.Config{
			Path:         s.Path,
			ReadOnly:     s.ReadOnly,
			Strict:       s.Strict,
			SystemDir:    s.SystemDir,
			Format:       s.Format,
			Logger:       o.logger,
			ErrorHandler: o.onError,
		})
		if err := repo.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to open store at %s: %w", s.Path, err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store adapter: %s", s.Adapter)
	}
}

// openSink combines every configured destination. With none configured,
// lines go to stdout.
func (rt *Runtime) openSink(ctx context.Context, s SinkSettings) (audit.Sink, error) {
	var tee sink.Tee

	if s.Stdout {
		tee = append(tee, sink.NewWriter(os.Stdout))
	}
	if s.Log {
		tee = append(tee, sink.NewSlog(rt.logger))
	}
	if s.File != "" {
		f, err := os.OpenFile(s.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		rt.closers = append(rt.closers, f.Close)
		tee = append(tee, sink.NewWriter(f))
	}
	if s.RedisURL != "" {
		client, err := sink.OpenRedis(ctx, s.RedisURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, client.Close)
		tee = append(tee, sink.NewRedis(client, s.Stream, sink.WithMaxLen(s.MaxLen)))
	}

	switch len(tee) {
	case 0:
		return sink.NewWriter(os.Stdout), nil
	case 1:
		return tee[0], nil
	default:
		return tee, nil
	}
}

// WriteLine writes a raw line to the runtime sink, bypassing the engine.
func (rt *Runtime) WriteLine(ctx context.Context, message, actingUser string) error {
	return rt.sink.WriteLine(ctx, message, actingUser)
}

// Settings returns the settings the runtime was built from.
func (rt *Runtime) Settings() Settings {
	return rt.settings
}

func (rt *Runtime) now() time.Time {
	return rt.clock()
}

// Close removes the engine subscriptions and releases the sinks.
func (rt *Runtime) Close() error {
	if rt.Table != nil {
		rt.Table.Close()
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
