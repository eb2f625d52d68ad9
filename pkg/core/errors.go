package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound  = errors.New("record not found")
	ErrReadOnly  = errors.New("repository is in read-only mode")
	ErrCancelled = errors.New("operation cancelled by event handler")
)

// RejectedError is returned when a creation was vetoed by a handler.
type RejectedError struct {
	Name   string
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("creating %q: %v", e.Name, ErrCancelled)
	}
	return fmt.Sprintf("creating %q: %s", e.Name, e.Reason)
}

func (e *RejectedError) Unwrap() error { return ErrCancelled }
