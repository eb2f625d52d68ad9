// Package memory implements core.MutableStore in memory.
//
// Records are copied on the way in and on the way out, so callers can mutate
// what they get back without touching the persisted version. An optional
// access check hides records from reads unless the context disables security.
package memory

import (
	"context"
	"sync"

	"github.com/aretw0/audittrail/pkg/core"
)

// AccessCheck reports whether the caller of ctx may read rec.
type AccessCheck func(ctx context.Context, rec *core.Record) bool

// Option configures a Store.
type Option func(*Store)

// WithAccessCheck installs an authorization check applied to reads.
func WithAccessCheck(check AccessCheck) Option {
	return func(s *Store) {
		s.access = check
	}
}

type key struct {
	store    string
	id       core.ID
	language string
	version  int
}

// Store is an in-memory record store.
type Store struct {
	mu       sync.RWMutex
	records  map[key]*core.Record
	access   AccessCheck
	readAlls int
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{records: make(map[key]*core.Record)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) visible(ctx context.Context, rec *core.Record) bool {
	if s.access == nil || core.SecurityDisabled(ctx) {
		return true
	}
	return s.access(ctx, rec)
}

// Get implements core.RecordStore.
func (s *Store) Get(ctx context.Context, ref core.Ref) (*core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	language := core.PreferredLanguage(ctx)
	var best *core.Record
	for k, rec := range s.records {
		if k.store != ref.Store || k.id != ref.ID {
			continue
		}
		if ref.Language != "" && k.language != ref.Language {
			continue
		}
		if ref.Version != 0 && k.version != ref.Version {
			continue
		}
		if core.Prefer(rec, best, language) {
			best = rec
		}
	}
	if best == nil || !s.visible(ctx, best) {
		return nil, core.ErrNotFound
	}
	return best.Clone(), nil
}

// Children implements core.RecordStore.
func (s *Store) Children(ctx context.Context, store string, id core.ID) ([]*core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	language := core.PreferredLanguage(ctx)
	latest := make(map[core.ID]*core.Record)
	for k, rec := range s.records {
		if k.store != store || rec.ParentID != id {
			continue
		}
		if core.Prefer(rec, latest[k.id], language) {
			latest[k.id] = rec
		}
	}

	children := make([]*core.Record, 0, len(latest))
	for _, rec := range latest {
		if s.visible(ctx, rec) {
			children = append(children, rec.Clone())
		}
	}
	core.SortRecords(children)
	return children, nil
}

// ReadAll implements core.RecordStore by materializing template fields.
func (s *Store) ReadAll(ctx context.Context, rec *core.Record) error {
	s.mu.Lock()
	s.readAlls++
	s.mu.Unlock()

	if rec.TemplateID.IsZero() {
		return nil
	}
	tmpl, err := s.Get(core.DisableSecurity(ctx), core.Ref{Store: rec.Store, ID: rec.TemplateID})
	if err != nil {
		// A record bound to a missing template has nothing more to materialize.
		return nil
	}
	rec.Materialize(tmpl)
	return nil
}

// ReadAllCalls returns how many times ReadAll was invoked.
func (s *Store) ReadAllCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readAlls
}

// Put implements core.MutableStore.
func (s *Store) Put(ctx context.Context, rec *core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key{store: rec.Store, id: rec.ID, language: rec.Language, version: rec.Version}] = rec.Clone()
	return nil
}

// Remove implements core.MutableStore.
func (s *Store) Remove(ctx context.Context, store string, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for k := range s.records {
		if k.store == store && k.id == id {
			delete(s.records, k)
			found = true
		}
	}
	if !found {
		return core.ErrNotFound
	}
	return nil
}

// Len returns the number of stored record versions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory"
}

var _ core.MutableStore = (*Store)(nil)
