package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/code-rabi/toolception-sub000/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// CatalogWatcher watches a catalog directory for toolset definition
// changes. It uses fsnotify and debounces rapid successive events (an
// editor save often produces several) into a single reload callback.
type CatalogWatcher struct {
	dir              string
	debounceInterval time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	stopCh  chan struct{}
	running bool
}

// NewCatalogWatcher creates a watcher for the given catalog directory.
// A zero debounceInterval defaults to 500ms.
func NewCatalogWatcher(dir string, debounceInterval time.Duration) *CatalogWatcher {
	if debounceInterval == 0 {
		debounceInterval = 500 * time.Millisecond
	}
	return &CatalogWatcher{
		dir:              dir,
		debounceInterval: debounceInterval,
	}
}

// Start begins watching. onChange is invoked after the debounce window
// whenever a YAML file in the directory is created, written, removed or
// renamed. Start is a no-op if the watcher is already running.
func (w *CatalogWatcher) Start(ctx context.Context, onChange func()) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		w.mu.Unlock()
		return err
	}

	w.watcher = watcher
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	go w.processEvents(ctx, watcher, stopCh, onChange)

	logging.Info("CatalogWatcher", "Started watching %s for toolset changes", w.dir)
	return nil
}

// Stop stops watching and cancels any pending debounced callback.
func (w *CatalogWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.watcher != nil {
		w.watcher.Close()
		w.watcher = nil
	}
}

// processEvents owns its watcher reference for the life of the loop; Stop
// nils the struct field, so the loop must never read it again.
func (w *CatalogWatcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh <-chan struct{}, onChange func()) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return

		case <-stopCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("CatalogWatcher", err, "Filesystem watcher error")
		}
	}
}

func (w *CatalogWatcher) handleEvent(event fsnotify.Event, onChange func()) {
	ext := filepath.Ext(event.Name)
	if ext != ".yaml" && ext != ".yml" {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	logging.Debug("CatalogWatcher", "Detected %s on %s", event.Op, filepath.Base(event.Name))

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceInterval, onChange)
}
