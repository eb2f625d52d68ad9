package sink

import (
	"context"
	"errors"
)

// LineWriter is the sink contract shared by every implementation here.
type LineWriter interface {
	WriteLine(ctx context.Context, message, actingUser string) error
}

// Tee fans a line out to several sinks. Every sink is written even when an
// earlier one fails; the failures are joined.
type Tee []LineWriter

// WriteLine implements audit.Sink.
func (t Tee) WriteLine(ctx context.Context, message, actingUser string) error {
	var errs []error
	for _, s := range t {
		if err := s.WriteLine(ctx, message, actingUser); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
