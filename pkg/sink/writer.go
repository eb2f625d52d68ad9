// Package sink provides destinations for audit lines.
package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aretw0/audittrail/pkg/core"
)

// Writer writes one "({user}): {message}" line per audit entry.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a sink writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteLine implements audit.Sink.
func (s *Writer) WriteLine(_ context.Context, message, actingUser string) error {
	if actingUser == "" {
		actingUser = core.AnonymousUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "(%s): %s\n", actingUser, message)
	return err
}
