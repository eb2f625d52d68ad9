package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/audittrail/pkg/core"
)

// Repository implements core.MutableStore on a directory tree.
//
// Every record lives in its own file at {store}{path}[.{language}]{ext}, e.g.
// master/content/home.en.yaml. A JSON index under SystemDir keeps the last
// acknowledged snapshot of every file; reads are served from it.
type Repository struct {
	Path        string
	config      Config
	cache       *cache
	serializers map[string]Serializer

	mu            sync.RWMutex
	readOnly      bool
	watcherActive bool
	lastReconcile *time.Time
	pending       map[core.Event]pendingChange
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path         string
	MustExist    bool
	ReadOnly     bool
	Strict       bool
	SystemDir    string // e.g. ".audittrail"
	Format       string // extension of new record files, e.g. ".yaml"
	Debounce     time.Duration
	Logger       *slog.Logger
	ErrorHandler func(error)
}

// pendingChange is a detected on-disk change waiting for its event to be delivered.
type pendingChange struct {
	rel   string
	rec   *core.Record
	mtime time.Time
}

// NewRepository creates a new filesystem-backed repository.
func NewRepository(config Config) *Repository {
	if config.SystemDir == "" {
		config.SystemDir = ".audittrail"
	}
	if config.Format == "" {
		config.Format = ".yaml"
	}
	if config.Debounce == 0 {
		config.Debounce = 50 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Repository{
		Path:        config.Path,
		config:      config,
		cache:       newCache(config.Path, config.SystemDir),
		serializers: DefaultSerializers(config.Strict),
		readOnly:    config.ReadOnly,
		pending:     make(map[core.Event]pendingChange),
	}
}

// Initialize creates the root directory and loads the index. When no index
// exists yet, it is built from the files on disk without raising events.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.MustExist {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("repository path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("repository path is not a directory: %s", r.Path)
		}
	} else if err := os.MkdirAll(r.Path, 0755); err != nil {
		return fmt.Errorf("failed to create repository directory: %w", err)
	}

	if err := r.cache.Load(); err != nil {
		return err
	}
	if r.cache.Len() > 0 {
		return nil
	}
	return r.rebuild(ctx)
}

func (r *Repository) rebuild(ctx context.Context) error {
	count := 0
	err := r.walk(ctx, func(rel string, info fs.FileInfo) error {
		rec, err := r.load(rel)
		if err != nil {
			r.reportError(fmt.Errorf("skipping %s: %w", rel, err))
			return nil
		}
		r.cache.Set(rel, &indexEntry{Record: rec, LastModified: info.ModTime()})
		count++
		return nil
	})
	if err != nil {
		return err
	}
	r.config.Logger.Debug("index rebuilt", "records", count)
	return r.cache.Save()
}

// walk visits every record file under the root.
func (r *Repository) walk(ctx context.Context, fn func(rel string, info fs.FileInfo) error) error {
	return filepath.WalkDir(r.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, ok := r.relative(p)
		if !ok {
			return nil
		}
		if d.IsDir() {
			if rel == r.config.SystemDir || strings.HasPrefix(path.Base(rel), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if r.ignored(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(rel, info)
	})
}

// relative converts an absolute path to the slash-separated index key.
func (r *Repository) relative(p string) (string, bool) {
	rel, err := filepath.Rel(r.Path, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ignored reports whether rel is not a record file.
func (r *Repository) ignored(rel string) bool {
	if rel == r.config.SystemDir || strings.HasPrefix(rel, r.config.SystemDir+"/") {
		return true
	}
	if isTempFile(rel) || strings.HasPrefix(path.Base(rel), ".") {
		return true
	}
	_, ok := r.serializers[path.Ext(rel)]
	return !ok
}

// fileName returns the index key of a record.
func (r *Repository) fileName(rec *core.Record, ext string) string {
	name := rec.Store + "/" + strings.TrimPrefix(rec.Path, "/")
	if rec.Language != "" {
		name += "." + rec.Language
	}
	return name + ext
}

// load parses a record file. Store and Path are derived from its location.
func (r *Repository) load(rel string) (*core.Record, error) {
	ext := path.Ext(rel)
	serializer, ok := r.serializers[ext]
	if !ok {
		return nil, fmt.Errorf("no serializer for %s", ext)
	}

	data, err := os.ReadFile(filepath.Join(r.Path, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	rec, err := serializer.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if rec.ID.IsZero() {
		return nil, errors.New("record has no id")
	}

	store, rest, found := strings.Cut(strings.TrimSuffix(rel, ext), "/")
	if !found {
		return nil, errors.New("record files must live inside a store directory")
	}
	if rec.Language != "" {
		rest = strings.TrimSuffix(rest, "."+rec.Language)
	}
	rec.Store = store
	rec.Path = "/" + rest
	if rec.Name == "" {
		rec.Name = path.Base(rec.Path)
	}
	return rec, nil
}

// locate returns the index key holding the given record language.
func (r *Repository) locate(store string, id core.ID, language string) (string, bool) {
	var key string
	r.cache.Range(func(rel string, e *indexEntry) bool {
		if e.Record.Store == store && e.Record.ID == id && e.Record.Language == language {
			key = rel
			return false
		}
		return true
	})
	return key, key != ""
}

// Get implements core.RecordStore.
func (r *Repository) Get(ctx context.Context, ref core.Ref) (*core.Record, error) {
	language := core.PreferredLanguage(ctx)
	var best *core.Record
	r.cache.Range(func(_ string, e *indexEntry) bool {
		rec := e.Record
		if rec.Store != ref.Store || rec.ID != ref.ID {
			return true
		}
		if ref.Language != "" && rec.Language != ref.Language {
			return true
		}
		if ref.Version != 0 && rec.Version != ref.Version {
			return true
		}
		if core.Prefer(rec, best, language) {
			best = rec
		}
		return true
	})
	if best == nil {
		return nil, core.ErrNotFound
	}
	return best.Clone(), nil
}

// Children implements core.RecordStore.
func (r *Repository) Children(ctx context.Context, store string, id core.ID) ([]*core.Record, error) {
	language := core.PreferredLanguage(ctx)
	latest := make(map[core.ID]*core.Record)
	r.cache.Range(func(_ string, e *indexEntry) bool {
		rec := e.Record
		if rec.Store == store && rec.ParentID == id {
			if core.Prefer(rec, latest[rec.ID], language) {
				latest[rec.ID] = rec
			}
		}
		return true
	})

	children := make([]*core.Record, 0, len(latest))
	for _, rec := range latest {
		children = append(children, rec.Clone())
	}
	core.SortRecords(children)
	return children, nil
}

// ReadAll implements core.RecordStore by materializing template fields.
func (r *Repository) ReadAll(ctx context.Context, rec *core.Record) error {
	if rec.TemplateID.IsZero() {
		return nil
	}
	tmpl, err := r.Get(ctx, core.Ref{Store: rec.Store, ID: rec.TemplateID})
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	rec.Materialize(tmpl)
	return nil
}

// Put implements core.MutableStore. A record whose location changed is
// written to its new file and the old file is removed.
func (r *Repository) Put(ctx context.Context, rec *core.Record) error {
	if r.isReadOnly() {
		return core.ErrReadOnly
	}
	if rec.Store == "" || rec.ID.IsZero() {
		return errors.New("record needs a store and an id")
	}
	if rec.Path == "" {
		rec.Path = "/" + rec.Name
	}

	ext := r.config.Format
	previous, hadPrevious := r.locate(rec.Store, rec.ID, rec.Language)
	if hadPrevious {
		ext = path.Ext(previous)
	}
	rel := r.fileName(rec, ext)

	data, err := r.serializers[ext].Serialize(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", rel, err)
	}
	full := filepath.Join(r.Path, filepath.FromSlash(rel))
	if err := writeFileAtomic(full, data, 0644); err != nil {
		return err
	}
	info, err := os.Stat(full)
	if err != nil {
		return err
	}

	if hadPrevious && previous != rel {
		if err := os.Remove(filepath.Join(r.Path, filepath.FromSlash(previous))); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", previous, err)
		}
		r.cache.Delete(previous)
	}
	r.cache.Set(rel, &indexEntry{Record: rec.Clone(), LastModified: info.ModTime()})
	return r.cache.Save()
}

// Remove implements core.MutableStore.
func (r *Repository) Remove(ctx context.Context, store string, id core.ID) error {
	if r.isReadOnly() {
		return core.ErrReadOnly
	}

	var files []string
	r.cache.Range(func(rel string, e *indexEntry) bool {
		if e.Record.Store == store && e.Record.ID == id {
			files = append(files, rel)
		}
		return true
	})
	if len(files) == 0 {
		return core.ErrNotFound
	}

	for _, rel := range files {
		if err := os.Remove(filepath.Join(r.Path, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", rel, err)
		}
		r.cache.Delete(rel)
	}
	return r.cache.Save()
}

// Detect compares one record file with its indexed snapshot and returns the
// event describing the difference, or nil when there is none. The index is
// left untouched until Commit is called with the returned event.
func (r *Repository) Detect(rel string) (core.Event, error) {
	full := filepath.Join(r.Path, filepath.FromSlash(rel))
	entry, known := r.cache.Lookup(rel)

	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		if !known {
			return nil, nil
		}
		ev := &core.DeletingEvent{Record: entry.Record.Clone()}
		r.track(ev, pendingChange{rel: rel})
		return ev, nil
	}
	if err != nil {
		return nil, err
	}
	if known && entry.LastModified.Equal(info.ModTime()) {
		return nil, nil
	}

	rec, err := r.load(rel)
	if err != nil {
		return nil, err
	}
	if rec.Statistics.Updated.Before(info.ModTime()) {
		rec.Statistics.Updated = info.ModTime()
	}
	change := pendingChange{rel: rel, rec: rec, mtime: info.ModTime()}

	if known {
		if rec.Statistics.Created.IsZero() {
			rec.Statistics.Created = entry.Record.Statistics.Created
		}
		ev := &core.SavingEvent{Record: rec}
		r.track(ev, change)
		return ev, nil
	}

	if rec.Statistics.Created.IsZero() {
		rec.Statistics.Created = info.ModTime()
	}
	parent := r.parentOf(rec)
	rec.ParentID = parent.ID
	ev := &core.CreatingEvent{Parent: parent, Name: rec.Name, ID: rec.ID, TemplateID: rec.TemplateID}
	r.track(ev, change)
	return ev, nil
}

// parentOf resolves the parent of a record found on disk, by ID first and by
// path otherwise. An unknown parent is described by its location only.
func (r *Repository) parentOf(rec *core.Record) *core.Record {
	if !rec.ParentID.IsZero() {
		if p, err := r.Get(context.Background(), core.Ref{Store: rec.Store, ID: rec.ParentID}); err == nil {
			return p
		}
	}
	parentPath := rec.ParentPath()
	var parent *core.Record
	r.cache.Range(func(_ string, e *indexEntry) bool {
		if e.Record.Store == rec.Store && e.Record.Path == parentPath {
			parent = e.Record.Clone()
			return false
		}
		return true
	})
	if parent == nil {
		parent = &core.Record{ID: rec.ParentID, Store: rec.Store, Path: parentPath, Name: path.Base(parentPath)}
	}
	return parent
}

func (r *Repository) track(ev core.Event, change pendingChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[ev] = change
}

// Commit records a detected change in the index once its event was delivered.
// A vetoed creation is not indexed.
func (r *Repository) Commit(ev core.Event) error {
	r.mu.Lock()
	change, ok := r.pending[ev]
	delete(r.pending, ev)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	switch e := ev.(type) {
	case *core.DeletingEvent:
		r.cache.Delete(change.rel)
	case *core.CreatingEvent:
		if e.Cancel {
			r.config.Logger.Warn("external creation vetoed, file left unindexed", "file", change.rel, "reason", e.Rejection)
			return nil
		}
		r.cache.Set(change.rel, &indexEntry{Record: change.rec, LastModified: change.mtime})
	default:
		r.cache.Set(change.rel, &indexEntry{Record: change.rec, LastModified: change.mtime})
	}
	return r.cache.Save()
}

// Discard drops a detected change whose delivery failed. It is detected again
// on the next event or reconciliation.
func (r *Repository) Discard(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, ev)
}

// Reconcile detects every difference between the files on disk and the index.
func (r *Repository) Reconcile(ctx context.Context) ([]core.Event, error) {
	var events []core.Event
	seen := make(map[string]bool)

	err := r.walk(ctx, func(rel string, _ fs.FileInfo) error {
		seen[rel] = true
		ev, err := r.Detect(rel)
		if err != nil {
			r.reportError(fmt.Errorf("failed to inspect %s: %w", rel, err))
			return nil
		}
		if ev != nil {
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var gone []string
	r.cache.Range(func(rel string, _ *indexEntry) bool {
		if !seen[rel] {
			gone = append(gone, rel)
		}
		return true
	})
	for _, rel := range gone {
		ev, err := r.Detect(rel)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			events = append(events, ev)
		}
	}

	r.recordReconcile()
	return events, nil
}

// SetReadOnly toggles write protection.
func (r *Repository) SetReadOnly(readOnly bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readOnly = readOnly
}

func (r *Repository) isReadOnly() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readOnly
}

func (r *Repository) reportError(err error) {
	if r.config.ErrorHandler != nil {
		r.config.ErrorHandler(err)
		return
	}
	r.config.Logger.Error("repository error", "error", err)
}

var _ core.MutableStore = (*Repository)(nil)
var _ core.Watchable = (*Repository)(nil)
