package platform

import (
	"context"
	"errors"

	lifecycleadapter "github.com/aretw0/audittrail/pkg/adapters/lifecycle"
	"github.com/aretw0/audittrail/pkg/core"
)

// ErrNotWatchable is returned when the store cannot report external edits.
var ErrNotWatchable = errors.New("store does not support watching")

// acknowledger is implemented by stores that wait for an event to be
// delivered before recording the change it describes.
type acknowledger interface {
	Commit(ev core.Event) error
	Discard(ev core.Event)
}

// reconciler is implemented by stores that can compare their persisted state
// with the backing medium.
type reconciler interface {
	Reconcile(ctx context.Context) ([]core.Event, error)
}

// Reconcile raises the changes made to the store while nobody was watching.
// It returns the number of events delivered.
func (rt *Runtime) Reconcile(ctx context.Context, actor core.Actor) (int, error) {
	r, ok := rt.Store.(reconciler)
	if !ok {
		return 0, nil
	}
	events, err := r.Reconcile(ctx)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, ev := range events {
		if rt.deliver(ctx, actor, ev) {
			delivered++
		}
	}
	rt.logger.Info("reconciled store", "changes", len(events), "delivered", delivered)
	return delivered, nil
}

// Watch raises every external edit of the store on the bus until ctx is done.
// Edits whose audit fails are logged and detected again later.
func (rt *Runtime) Watch(ctx context.Context, pattern string, actor core.Actor) error {
	w, ok := rt.Store.(core.Watchable)
	if !ok {
		return ErrNotWatchable
	}
	events, err := w.Watch(ctx, pattern)
	if err != nil {
		return err
	}

	source := lifecycleadapter.NewSource(events)
	if err := source.Start(ctx); err != nil {
		return err
	}
	rt.logger.Info("watching store", "pattern", pattern)

	for e := range source.Events() {
		ev, ok := e.(core.Event)
		if !ok {
			rt.logger.Warn("ignoring foreign event", "event", e.String())
			continue
		}
		rt.deliver(ctx, actor, ev)
	}
	return nil
}

func (rt *Runtime) deliver(ctx context.Context, actor core.Actor, ev core.Event) bool {
	ack, _ := rt.Store.(acknowledger)

	if err := rt.Bus.Raise(ctx, actor, ev); err != nil {
		rt.logger.Error("failed to audit external change", "event", ev.String(), "error", err)
		if ack != nil {
			ack.Discard(ev)
		}
		return false
	}
	if ack != nil {
		if err := ack.Commit(ev); err != nil {
			rt.logger.Error("failed to record external change", "event", ev.String(), "error", err)
			return false
		}
	}
	rt.logger.Debug("external change audited", "event", ev.String())
	return true
}
