// Package bus provides an in-process, synchronous event bus.
//
// Raise delivers an event to the handlers subscribed to its kind, in
// subscription order, on the calling goroutine. The first handler error stops
// delivery and is returned to the raiser.
package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/audittrail/pkg/core"
)

type subscription struct {
	id      uint64
	handler core.Handler
}

// Bus implements core.Subscriber and core.Raiser.
type Bus struct {
	mu       sync.RWMutex
	handlers map[core.EventKind][]subscription
	nextID   uint64
	logger   *slog.Logger
}

// New creates an empty bus. A nil logger disables debug logging.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[core.EventKind][]subscription),
		logger:   logger,
	}
}

// Subscribe registers h for kind and returns a function that removes it.
func (b *Bus) Subscribe(kind core.EventKind, h core.Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[kind] = append(b.handlers[kind], subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(kind, id) })
	}
}

func (b *Bus) unsubscribe(kind core.EventKind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[kind]
	for i, s := range subs {
		if s.id == id {
			b.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[kind]) == 0 {
		delete(b.handlers, kind)
	}
}

// Raise delivers ev to every handler subscribed to its kind.
func (b *Bus) Raise(ctx context.Context, actor core.Actor, ev core.Event) error {
	b.mu.RLock()
	subs := b.handlers[ev.Kind()]
	b.mu.RUnlock()

	if len(subs) == 0 {
		if b.logger != nil {
			b.logger.Debug("no subscribers", "kind", ev.Kind())
		}
		return nil
	}

	for _, s := range subs {
		if err := s.handler(ctx, actor, ev); err != nil {
			return err
		}
	}
	return nil
}

// Subscribed returns the number of handlers registered for kind.
func (b *Bus) Subscribed(kind core.EventKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}

var _ core.Subscriber = (*Bus)(nil)
var _ core.Raiser = (*Bus)(nil)
