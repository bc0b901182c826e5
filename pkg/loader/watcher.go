package loader

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceWindow coalesces a burst of writes to the artifact file
// (a build tool truncating then rewriting, an editor's atomic rename) into
// a single reload instead of one per filesystem event.
const DefaultDebounceWindow = 250 * time.Millisecond

// Watcher triggers a Loader.Reload whenever the watched artifact file
// changes on disk, debouncing rapid-fire fsnotify events into one batch.
type Watcher struct {
	loader *Loader
	path   string
	window time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopCh  chan struct{}
	stopped bool
}

// NewWatcher builds a Watcher for the artifact at path. window <= 0 uses
// DefaultDebounceWindow.
func NewWatcher(l *Loader, path string, window time.Duration) *Watcher {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Watcher{loader: l, path: path, window: window, stopCh: make(chan struct{})}
}

// Run watches the artifact's parent directory (fsnotify on most platforms
// cannot watch a single file across editor-style atomic renames) and calls
// Reload, debounced, on every relevant change until ctx is cancelled or
// Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fsw.Close() }()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			w.scheduleReload(ctx)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("loader: watcher error: %v", err)
		}
	}
}

func (w *Watcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.window, func() {
		if err := w.loader.Reload(ctx); err != nil {
			log.Printf("loader: reload after file change failed: %v", err)
		}
	})
}

// Stop halts the watcher. Run returns once the current event loop
// iteration observes it.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.stopCh)
}
