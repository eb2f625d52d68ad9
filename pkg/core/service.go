package core

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"
)

// Service performs mutations on a MutableStore and raises the matching events,
// the way a content repository notifies its observers.
type Service struct {
	mu    sync.RWMutex
	store MutableStore
	bus   Raiser
	now   func() time.Time
}

// NewService creates a new Service. A nil bus disables event raising.
func NewService(store MutableStore, bus Raiser) *Service {
	return &Service{store: store, bus: bus, now: time.Now}
}

// SetClock replaces the time source used for record statistics.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Store returns the underlying store.
func (s *Service) Store() MutableStore {
	return s.store
}

func (s *Service) clock() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

func (s *Service) raise(ctx context.Context, actor Actor, ev Event) error {
	if s.bus == nil {
		return nil
	}
	return s.bus.Raise(ctx, actor, ev)
}

func (s *Service) load(ctx context.Context, ref Ref) (*Record, error) {
	if ref.ID.IsZero() {
		return nil, errors.New("record ID cannot be empty")
	}
	rec, err := s.store.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s:%s: %w", ref.Store, ref.ID, err)
	}
	return rec, nil
}

// Create adds a record named name under parent, bound to templateID.
// Handlers of the Creating event may veto the creation, in which case a
// *RejectedError is returned and nothing is persisted.
func (s *Service) Create(ctx context.Context, actor Actor, parent Ref, name string, templateID ID) (*Record, error) {
	if name == "" {
		return nil, errors.New("record name cannot be empty")
	}
	p, err := s.load(ctx, parent)
	if err != nil {
		return nil, err
	}

	ev := &CreatingEvent{Parent: p, Name: name, ID: NewID(), TemplateID: templateID}
	if err := s.raise(ctx, actor, ev); err != nil {
		return nil, err
	}
	if ev.Cancel {
		return nil, &RejectedError{Name: name, Reason: ev.Rejection}
	}

	now := s.clock()
	rec := &Record{
		ID:         ev.ID,
		Store:      p.Store,
		Path:       path.Join(p.Path, name),
		Name:       name,
		Language:   p.Language,
		Version:    1,
		ParentID:   p.ID,
		TemplateID: templateID,
		Statistics: Statistics{Created: now, Updated: now},
	}
	if !templateID.IsZero() {
		if tmpl, err := s.store.Get(ctx, Ref{Store: p.Store, ID: templateID}); err == nil {
			for _, f := range tmpl.Fields {
				rec.Fields = append(rec.Fields, Field{ID: f.ID, Name: f.Name, DisplayName: f.DisplayName})
			}
		}
	}

	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist %s: %w", rec.Path, err)
	}
	return rec, nil
}

// Save persists a new version of rec, raising Saving before the write.
func (s *Service) Save(ctx context.Context, actor Actor, rec *Record) error {
	if rec == nil || rec.ID.IsZero() {
		return errors.New("record has no ID")
	}
	rec.Statistics.Updated = s.clock()
	if err := s.raise(ctx, actor, &SavingEvent{Record: rec}); err != nil {
		return err
	}
	return s.store.Put(ctx, rec)
}

// Delete removes a record and its descendants, raising Deleting for the record.
func (s *Service) Delete(ctx context.Context, actor Actor, ref Ref) error {
	rec, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.raise(ctx, actor, &DeletingEvent{Record: rec}); err != nil {
		return err
	}

	var descendants []*Record
	if err := s.walk(ctx, rec, func(r *Record) error {
		descendants = append(descendants, r)
		return nil
	}); err != nil {
		return err
	}
	for i := len(descendants) - 1; i >= 0; i-- {
		if err := s.store.Remove(ctx, descendants[i].Store, descendants[i].ID); err != nil {
			return err
		}
	}
	return s.store.Remove(ctx, rec.Store, rec.ID)
}

// Copy duplicates src under dest with the given name. An empty name keeps the
// source name. With deep set, the whole subtree is copied.
func (s *Service) Copy(ctx context.Context, actor Actor, src, dest Ref, name string, deep bool) (*Record, error) {
	source, err := s.load(ctx, src)
	if err != nil {
		return nil, err
	}
	destination, err := s.load(ctx, dest)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = source.Name
	}

	ev := &CopyingEvent{Source: source, Destination: destination, Name: name, NewID: NewID(), Recursive: deep}
	if err := s.raise(ctx, actor, ev); err != nil {
		return nil, err
	}
	return s.copyTree(ctx, source, destination, name, ev.NewID, deep)
}

func (s *Service) copyTree(ctx context.Context, source, parent *Record, name string, id ID, deep bool) (*Record, error) {
	now := s.clock()
	c := source.Clone()
	c.ID = id
	c.Name = name
	c.Store = parent.Store
	c.ParentID = parent.ID
	c.Path = path.Join(parent.Path, name)
	c.Statistics = Statistics{Created: now, Updated: now}
	if err := s.store.Put(ctx, c); err != nil {
		return nil, err
	}
	if !deep {
		return c, nil
	}

	children, err := s.store.Children(ctx, source.Store, source.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if _, err := s.copyTree(ctx, child, c, child.Name, NewID(), true); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Move re-parents a record under newParent.
func (s *Service) Move(ctx context.Context, actor Actor, ref, newParent Ref) error {
	rec, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	np, err := s.load(ctx, newParent)
	if err != nil {
		return err
	}

	if err := s.raise(ctx, actor, &MovingEvent{Record: rec, OldParentID: rec.ParentID, NewParentID: np.ID}); err != nil {
		return err
	}

	rec.ParentID = np.ID
	rec.Path = path.Join(np.Path, rec.Name)
	if err := s.store.Put(ctx, rec); err != nil {
		return err
	}
	return s.repath(ctx, rec)
}

// Rename changes the name of a record, raising Renamed once persisted.
func (s *Service) Rename(ctx context.Context, actor Actor, ref Ref, name string) error {
	if name == "" {
		return errors.New("record name cannot be empty")
	}
	rec, err := s.load(ctx, ref)
	if err != nil {
		return err
	}

	previous := rec.Name
	rec.Name = name
	rec.Path = path.Join(rec.ParentPath(), name)
	rec.Statistics.Updated = s.clock()
	if err := s.store.Put(ctx, rec); err != nil {
		return err
	}
	if err := s.repath(ctx, rec); err != nil {
		return err
	}
	return s.raise(ctx, actor, &RenamedEvent{Record: rec, PreviousName: previous})
}

// SetSortOrder stores a new raw sort order value on the record.
func (s *Service) SetSortOrder(ctx context.Context, actor Actor, ref Ref, order string) error {
	rec, err := s.load(ctx, ref)
	if err != nil {
		return err
	}

	previous := rec.SortOrder
	rec.SortOrder = order
	if err := s.store.Put(ctx, rec); err != nil {
		return err
	}
	return s.raise(ctx, actor, &SortOrderChangedEvent{Record: rec, PreviousSortOrder: previous})
}

// ChangeTemplate binds the record to another template. Fields the target
// template does not define are dropped and reported as DeleteField changes.
func (s *Service) ChangeTemplate(ctx context.Context, actor Actor, ref Ref, templateID ID) error {
	rec, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	target, err := s.load(ctx, Ref{Store: rec.Store, ID: templateID})
	if err != nil {
		return err
	}
	source, err := s.store.Get(ctx, Ref{Store: rec.Store, ID: rec.TemplateID})
	if err != nil {
		source = &Record{ID: rec.TemplateID, Name: rec.TemplateID.String()}
	}

	changes := &TemplateChangeList{
		Source: Template{ID: source.ID, Name: source.Name},
		Target: Template{ID: target.ID, Name: target.Name},
	}
	for _, sf := range source.Fields {
		if _, ok := fieldByID(target.Fields, sf.ID); ok {
			continue
		}
		if tf, ok := target.Field(sf.Name); ok {
			changes.Changes = append(changes.Changes, TemplateChange{Action: ActionChangeFieldID, SourceField: sf, TargetField: tf})
			continue
		}
		changes.Changes = append(changes.Changes, TemplateChange{Action: ActionDeleteField, SourceField: sf})
	}

	fields := make([]Field, 0, len(target.Fields))
	for _, f := range rec.Fields {
		if f.IsSystem() {
			fields = append(fields, f)
		}
	}
	for _, tf := range target.Fields {
		nf := Field{ID: tf.ID, Name: tf.Name, DisplayName: tf.DisplayName}
		if old, ok := fieldByID(rec.Fields, tf.ID); ok {
			nf.Value = old.Value
		} else if old, ok := rec.Field(tf.Name); ok {
			nf.Value = old.Value
		}
		fields = append(fields, nf)
	}

	rec.Fields = fields
	rec.TemplateID = target.ID
	rec.Statistics.Updated = s.clock()
	if err := s.store.Put(ctx, rec); err != nil {
		return err
	}
	return s.raise(ctx, actor, &TemplateChangedEvent{Record: rec, Changes: changes})
}

// repath rewrites the stored paths of every descendant of rec.
func (s *Service) repath(ctx context.Context, rec *Record) error {
	children, err := s.store.Children(ctx, rec.Store, rec.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		child.Path = path.Join(rec.Path, child.Name)
		if err := s.store.Put(ctx, child); err != nil {
			return err
		}
		if err := s.repath(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) walk(ctx context.Context, rec *Record, fn func(*Record) error) error {
	children, err := s.store.Children(ctx, rec.Store, rec.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := fn(child); err != nil {
			return err
		}
		if err := s.walk(ctx, child, fn); err != nil {
			return err
		}
	}
	return nil
}

func fieldByID(fields []Field, id ID) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}
