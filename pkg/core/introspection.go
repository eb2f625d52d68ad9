package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	StoreType string `json:"store_type"`
	Raising   bool   `json:"raising"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	storeType := "unknown"
	if s.store != nil {
		storeType = "store"
		if comp, ok := s.store.(introspection.Component); ok {
			storeType = comp.ComponentType()
		}
	}

	return ServiceState{
		StoreType: storeType,
		Raising:   s.bus != nil,
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
