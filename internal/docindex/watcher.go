package docindex

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader is implemented by anything that can reload the search index.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Watcher reloads the search index when its source file changes.
// It watches the parent directory, since generators usually replace the
// file rather than writing it in place.
type Watcher struct {
	source   string
	debounce time.Duration
	reloader Reloader
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	closed  bool
	reloads int
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for source.
func NewWatcher(source string, debounce time.Duration, reloader Reloader) (*Watcher, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		source:   abs,
		debounce: debounce,
		reloader: reloader,
		watcher:  fw,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking; events are handled in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher is stopped")
	}
	if w.running {
		return nil
	}

	dir := filepath.Dir(w.source)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.running = true

	slog.Info("Watching search index source", "path", w.source, "debounce", w.debounce)
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
// A stopped watcher cannot be restarted.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}

	if err := w.watcher.Close(); err != nil {
		slog.Error("Failed to close file watcher", "error", err)
	}
}

// Reloads returns the number of reloads triggered so far.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	// A stopped timer that is armed by the first relevant event
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				slog.Debug("Search index source changed", "op", event.Op.String())
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)

		case <-timer.C:
			w.reload(ctx)
		}
	}
}

// relevant reports whether event may have changed the source file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.source {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}

func (w *Watcher) reload(ctx context.Context) {
	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()

	if err := w.reloader.Reload(ctx); err != nil {
		slog.Error("Search index reload failed, keeping previous index", "error", err)
		return
	}
	slog.Info("Search index reloaded", "path", w.source)
}
