package policy

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Store when its policy files change.
type Watcher struct {
	store        *Store
	watcher      *fsnotify.Watcher
	logger       *slog.Logger
	mu           sync.RWMutex
	running      bool
	stopCh       chan struct{}
	debounceTime time.Duration
}

// NewWatcher creates a watcher for store's policy path.
func NewWatcher(store *Store, logger *slog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		store:        store,
		watcher:      watcher,
		logger:       logger,
		stopCh:       make(chan struct{}),
		debounceTime: 500 * time.Millisecond,
	}, nil
}

// Start begins watching. Reloads run until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory: editors often replace files by rename.
	if err := w.watcher.Add(w.watchDir()); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	w.logger.Info("Policy watcher started", "policy_path", w.store.Path())

	go w.watchLoop(ctx)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	return w.watcher.Close()
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer

	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isPolicyEvent(event) {
				continue
			}

			w.logger.Debug("Policy file event detected", "event", event.Op.String(), "file", event.Name)

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounceTime, func() {
				w.triggerReload(ctx)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Policy watcher error", "error", err)

		case <-w.stopCh:
			w.logger.Info("Policy watcher stopped")
			return

		case <-ctx.Done():
			w.logger.Info("Policy watcher context cancelled")
			return
		}
	}
}

func (w *Watcher) watchDir() string {
	path := w.store.Path()
	if w.watchesDirectory() {
		return path
	}
	return filepath.Dir(path)
}

func (w *Watcher) watchesDirectory() bool {
	return !strings.HasSuffix(w.store.Path(), ".rego")
}

// isPolicyEvent reports whether event touches a watched policy file.
func (w *Watcher) isPolicyEvent(event fsnotify.Event) bool {
	eventPath, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}

	if w.watchesDirectory() {
		return strings.HasSuffix(eventPath, ".rego")
	}

	policyPath, err := filepath.Abs(w.store.Path())
	if err != nil {
		return false
	}
	return eventPath == policyPath
}

func (w *Watcher) triggerReload(ctx context.Context) {
	w.logger.Info("Policy changed, triggering reload", "policy_path", w.store.Path())

	start := time.Now()
	if err := w.store.Reload(ctx); err != nil {
		w.logger.Error("Policy reload failed, keeping previous policy", "error", err, "duration", time.Since(start))
		return
	}
	w.logger.Info("Policy reload completed successfully", "duration", time.Since(start))
}
