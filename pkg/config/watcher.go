package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the freshly loaded file configuration.
type ReloadFunc func(*FileConfig) error

// Watcher watches a configuration file and invokes a callback with the
// reloaded contents after writes settle.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	reload   ReloadFunc
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for path. Debounce defaults to 250ms.
func NewWatcher(path string, reload ReloadFunc, logger *slog.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		path:     absPath,
		watcher:  fsw,
		reload:   reload,
		logger:   logger,
		debounce: 250 * time.Millisecond,
	}, nil
}

// SetDebounce overrides the settle delay. It must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Start begins watching. The directory is watched rather than the file
// because editors commonly replace files via rename.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.watchLoop(ctx)

	w.logger.Info("Config watcher started", "config_path", w.path)
	return nil
}

// Stop terminates the watch loop and releases the fsnotify handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	err := w.watcher.Close()
	<-done
	return err
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.doneCh)

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
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			w.logger.Debug("Config file event detected", "event", event.Op.String(), "file", event.Name)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.triggerReload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", "error", err)

		case <-w.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) triggerReload() {
	start := time.Now()
	cfg, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("Config reload failed", "error", err, "config_path", w.path)
		return
	}
	if err := w.reload(cfg); err != nil {
		w.logger.Error("Config reload callback failed", "error", err, "duration", time.Since(start))
		return
	}
	w.logger.Info("Config reload completed", "config_path", w.path, "duration", time.Since(start))
}
