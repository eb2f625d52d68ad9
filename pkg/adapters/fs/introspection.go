package fs

import (
	"sort"
	"time"

	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path           string     `json:"path"`
	SystemDir      string     `json:"system_dir"`
	IndexSize      int        `json:"index_size"`
	ReadOnly       bool       `json:"read_only"`
	Strict         bool       `json:"strict"`
	Format         string     `json:"format"`
	Serializers    []string   `json:"serializers"`
	WatcherActive  bool       `json:"watcher_active"`
	PendingChanges int        `json:"pending_changes"`
	LastReconcile  *time.Time `json:"last_reconcile,omitempty"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	serializers := make([]string, 0, len(r.serializers))
	for ext := range r.serializers {
		serializers = append(serializers, ext)
	}
	sort.Strings(serializers)

	return RepositoryState{
		Path:           r.Path,
		SystemDir:      r.config.SystemDir,
		IndexSize:      r.cache.Len(),
		ReadOnly:       r.readOnly,
		Strict:         r.config.Strict,
		Format:         r.config.Format,
		Serializers:    serializers,
		WatcherActive:  r.watcherActive,
		PendingChanges: len(r.pending),
		LastReconcile:  r.lastReconcile,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "fs"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)

func (r *Repository) setWatcherActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watcherActive = active
}

func (r *Repository) recordReconcile() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.lastReconcile = &now
}
