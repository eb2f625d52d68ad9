package audit

import (
	"github.com/aretw0/introspection"

	"github.com/aretw0/audittrail/pkg/core"
)

// EngineState exposes internal state for observability.
type EngineState struct {
	Enabled      bool     `json:"enabled"`
	PrimaryStore string   `json:"primary_store"`
	Authoring    bool     `json:"authoring"`
	Kinds        []string `json:"kinds"`
	StoreType    string   `json:"store_type"`
	GuardActive  bool     `json:"duplicate_guard"`
}

// State implements introspection.Introspectable.
func (e *Engine) State() any {
	kinds := []string{}
	if e.config.Enabled {
		switches := e.config.Switches()
		for _, kind := range core.Kinds() {
			if switches[kind] {
				kinds = append(kinds, string(kind))
			}
		}
	}

	storeType := "unknown"
	if comp, ok := e.store.(introspection.Component); ok {
		storeType = comp.ComponentType()
	}

	return EngineState{
		Enabled:      e.config.Enabled,
		PrimaryStore: e.config.PrimaryStore,
		Authoring:    e.config.IsAuthoring(),
		Kinds:        kinds,
		StoreType:    storeType,
		GuardActive:  e.config.PreventDuplicateItemNames,
	}
}

// ComponentType implements introspection.Component.
func (e *Engine) ComponentType() string {
	return "audit-engine"
}

var _ introspection.Introspectable = (*Engine)(nil)
var _ introspection.Component = (*Engine)(nil)
