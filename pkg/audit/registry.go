package audit

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/audittrail/pkg/core"
)

// Subscription is one row of a SubscriptionTable.
type Subscription struct {
	Kind    core.EventKind
	Enabled bool
	Handler core.Handler
}

// SubscriptionTable is the result of Configure. It is read-only.
type SubscriptionTable struct {
	entries      map[core.EventKind]Subscription
	unsubscribes []func()
}

// Configure builds a fresh table from the engine configuration and subscribes
// every enabled handler to bus. A nil bus only builds the table, which can
// then be driven through Dispatch.
//
// Calling Configure again returns an independent table; the subscriptions of
// a previous table stay on the bus until that table is closed.
func (e *Engine) Configure(bus core.Subscriber) *SubscriptionTable {
	table := &SubscriptionTable{entries: make(map[core.EventKind]Subscription, len(core.Kinds()))}
	switches := e.config.Switches()
	handlers := e.handlers()

	if !e.config.Enabled {
		e.logger.Info("auditing disabled by configuration")
	}
	e.logger.Debug("configuring audit handlers",
		"primary_store", e.config.PrimaryStore,
		"authoring", e.config.IsAuthoring())

	for _, kind := range core.Kinds() {
		sub := Subscription{Kind: kind, Enabled: e.config.Enabled && switches[kind]}
		if sub.Enabled {
			sub.Handler = handlers[kind]
			if bus != nil {
				table.unsubscribes = append(table.unsubscribes, bus.Subscribe(kind, sub.Handler))
			}
		}
		table.entries[kind] = sub
	}
	return table
}

// Lookup returns the row for kind.
func (t *SubscriptionTable) Lookup(kind core.EventKind) (Subscription, bool) {
	sub, ok := t.entries[kind]
	return sub, ok
}

// Enabled reports whether a handler is subscribed for kind.
func (t *SubscriptionTable) Enabled(kind core.EventKind) bool {
	return t.entries[kind].Enabled
}

// Kinds returns the subscribed kinds in registration order.
func (t *SubscriptionTable) Kinds() []core.EventKind {
	var kinds []core.EventKind
	for _, kind := range core.Kinds() {
		if t.entries[kind].Enabled {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Dispatch invokes the handler subscribed for the event kind, if any.
func (t *SubscriptionTable) Dispatch(ctx context.Context, actor core.Actor, ev core.Event) error {
	if ev == nil {
		return nil
	}
	sub := t.entries[ev.Kind()]
	if !sub.Enabled {
		return nil
	}
	return sub.Handler(ctx, actor, ev)
}

// Close removes the subscriptions this table placed on the bus.
func (t *SubscriptionTable) Close() {
	for _, unsubscribe := range t.unsubscribes {
		unsubscribe()
	}
	t.unsubscribes = nil
}

func (e *Engine) handlers() map[core.EventKind]core.Handler {
	return map[core.EventKind]core.Handler{
		core.KindCreating:         bind(e, core.KindCreating, e.onCreating),
		core.KindSaving:           bind(e, core.KindSaving, e.onSaving),
		core.KindDeleting:         bind(e, core.KindDeleting, e.onDeleting),
		core.KindCopying:          bind(e, core.KindCopying, e.onCopying),
		core.KindMoving:           bind(e, core.KindMoving, e.onMoving),
		core.KindRenamed:          bind(e, core.KindRenamed, e.onRenamed),
		core.KindSortOrderChanged: bind(e, core.KindSortOrderChanged, e.onSortOrderChanged),
		core.KindTemplateChanged:  bind(e, core.KindTemplateChanged, e.onTemplateChanged),
		core.KindPublishProcessed: bind(e, core.KindPublishProcessed, e.onPublishProcessed),
	}
}

// bind adapts a typed handler to core.Handler. The handler body runs with
// store security disabled on a derived context and inside a span.
func bind[E core.Event](e *Engine, kind core.EventKind, fn func(context.Context, core.Actor, E) error) core.Handler {
	return func(ctx context.Context, actor core.Actor, ev core.Event) (err error) {
		typed, ok := ev.(E)
		assertf(ok, "%s handler received %T", kind, ev)

		ctx, span := e.tracer.Start(ctx, "audit."+string(kind),
			trace.WithAttributes(
				attribute.String("audit.kind", string(kind)),
				attribute.String("audit.user", actor.Name()),
			))
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()

		e.metrics.Events.WithLabelValues(string(kind)).Inc()
		return fn(core.DisableSecurity(ctx), actor, typed)
	}
}
