package prompt

import (
	"context"
	"strings"
	"sync"
	"time"

	"dealgraph/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the registry's overrides when files in the override
// directory change. Rapid saves are debounced into a single reload.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	registry *Registry
	dir      string

	debounceDur time.Duration
	pending     bool
	lastEvent   time.Time

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher for the given override directory.
func NewWatcher(dir string, registry *Registry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fsw,
		registry:    registry,
		dir:         dir,
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start loads the current overrides and begins watching. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.registry.LoadOverrides(w.dir); err != nil {
		logging.Get(logging.CategoryPipeline).Warn("Initial prompt override load failed: %v", err)
	}

	if err := w.watcher.Add(w.dir); err != nil {
		// Directory may not exist yet; defaults stay in effect.
		logging.Get(logging.CategoryPipeline).Warn("Prompt watcher: initial watch failed (dir may not exist): %v", err)
	} else {
		logging.Pipeline("Prompt watcher: watching %s", w.dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryPipeline).Error("Prompt watcher: error closing: %v", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

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
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryPipeline).Error("Prompt watcher error: %v", err)

		case <-ticker.C:
			w.reloadIfDue()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".txt") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	logging.PipelineDebug("Prompt watcher: %s changed", event.Name)

	w.mu.Lock()
	w.pending = true
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) reloadIfDue() {
	w.mu.Lock()
	due := w.pending && time.Since(w.lastEvent) >= w.debounceDur
	if due {
		w.pending = false
	}
	w.mu.Unlock()

	if !due {
		return
	}
	if err := w.registry.LoadOverrides(w.dir); err != nil {
		logging.Get(logging.CategoryPipeline).Error("Prompt override reload failed: %v", err)
		return
	}
	logging.Pipeline("Prompt overrides reloaded from %s", w.dir)
}
