// Package lifecycle connects watched record stores to the lifecycle runtime.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/audittrail/pkg/core"
)

type recordSource struct {
	events <-chan core.Event
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that emits the mutation events of a
// watched store. Every core.Event satisfies lifecycle.Event through String.
func NewSource(events <-chan core.Event) lifecycle.Source {
	return &recordSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
}

func (s *recordSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Start forwards events until ctx is done or the store channel closes.
// The output channel is closed afterwards.
func (s *recordSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
