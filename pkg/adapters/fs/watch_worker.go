package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/audittrail/pkg/core"
)

type watchWorker struct {
	*worker.BaseWorker
	repo      *Repository
	pattern   string
	events    chan<- core.Event
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

func newWatchWorker(repo *Repository, pattern string, events chan<- core.Event) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		repo:       repo,
		pattern:    pattern,
		events:     events,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.repo.recursiveAdd(watcher, w.repo.Path); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(w.repo.config.Debounce)
	w.repo.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"pattern":           w.pattern,
		}
	})
}

// processFilesystemEvent filters an fsnotify event and schedules the
// detection of the affected record file.
func (w *watchWorker) processFilesystemEvent(ctx context.Context, event fsnotify.Event) bool {
	w.repo.config.Logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	if event.Op == fsnotify.Chmod {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.watchNewDirectory(ctx, event.Name)
			return true
		}
	}

	rel, ok := w.repo.relative(event.Name)
	if !ok || !w.repo.matches(rel, w.pattern) {
		return false
	}

	w.debouncer.add(rel, func() { w.detect(ctx, rel) })
	return true
}

// watchNewDirectory starts watching a directory created after startup and
// picks up the files that landed in it before it was registered.
func (w *watchWorker) watchNewDirectory(ctx context.Context, dir string) {
	if err := w.repo.recursiveAdd(w.watcher, dir); err != nil {
		w.handleWatcherError(err)
		return
	}
	_ = w.repo.walkDir(dir, func(rel string) {
		if w.repo.matches(rel, w.pattern) {
			w.debouncer.add(rel, func() { w.detect(ctx, rel) })
		}
	})
}

func (w *watchWorker) detect(ctx context.Context, rel string) {
	ev, err := w.repo.Detect(rel)
	if err != nil {
		w.repo.reportError(fmt.Errorf("failed to inspect %s: %w", rel, err))
		return
	}
	if ev != nil {
		w.sendEvent(ctx, ev)
	}
}

// sendEvent delivers an event, protecting against channel closure during shutdown.
func (w *watchWorker) sendEvent(ctx context.Context, ev core.Event) {
	defer func() {
		_ = recover()
	}()
	select {
	case w.events <- ev:
	case <-ctx.Done():
		w.repo.Discard(ev)
	}
}

func (w *watchWorker) handleWatcherError(err error) {
	w.repo.config.Logger.Error("fsnotify error", "error", err)
	if w.repo.config.ErrorHandler != nil {
		w.repo.config.ErrorHandler(err)
	}
}

// run is the main event loop for the watcher worker.
func (w *watchWorker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if w.repo.config.Logger.Enabled(ctx, slog.LevelDebug) {
				w.repo.config.Logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				w.repo.config.Logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.repo.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.mainEventLoop(ctx)

	// In-flight detections must finish before the events channel can be closed.
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *watchWorker) mainEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleWatcherError(wErr)
		}
	}
}
