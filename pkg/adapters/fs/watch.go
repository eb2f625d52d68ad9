package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/audittrail/pkg/core"
)

// Watch observes record files matching pattern (a doublestar glob relative to
// the root, e.g. "master/**") and reports external edits as Creating, Saving
// and Deleting events. The watcher is supervised and restarted on failure.
// The channel is closed once ctx is done and the watcher has stopped.
//
// Consumers must call Commit (or Discard) for every event received.
func (r *Repository) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}

	events := make(chan core.Event, 64)
	spec := r.watcherSpec(pattern, events)

	sup := supervisor.New("fs-watch", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := sup.Stop(stopCtx)
		close(events)
		return err
	}, lifecycle.WithErrorHandler(r.reportError))

	return events, nil
}

// watcherSpec describes the supervised watch worker feeding events.
func (r *Repository) watcherSpec(pattern string, events chan<- core.Event) supervisor.Spec {
	return supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return newWatchWorker(r, pattern, events), nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			ResetDuration:   time.Minute,
			MaxRestarts:     5,
			MaxDuration:     5 * time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}
}

// matches reports whether rel is a record file selected by pattern.
func (r *Repository) matches(rel, pattern string) bool {
	if r.ignored(rel) {
		return false
	}
	if pattern == "" || pattern == "*" || pattern == "**" {
		return true
	}
	ok, err := doublestar.Match(pattern, rel)
	return err == nil && ok
}

// recursiveAdd registers every directory below dir, skipping the system
// directory and hidden directories.
func (r *Repository) recursiveAdd(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := r.relative(p); ok && (rel == r.config.SystemDir || strings.HasPrefix(filepath.Base(p), ".")) {
			return filepath.SkipDir
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

// walkDir calls fn for every record file below dir.
func (r *Repository) walkDir(dir string, fn func(rel string)) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if rel, ok := r.relative(p); ok && !r.ignored(rel) {
			fn(rel)
		}
		return nil
	})
}
