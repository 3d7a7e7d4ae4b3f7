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

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchDebounce sets the debounce duration for file change events.
func WithWatchDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// Watcher monitors a settings file for changes and invokes a callback with
// the freshly parsed document. It watches the directory containing the
// file for atomic-save compatibility.
type Watcher struct {
	source   *FileSource
	debounce time.Duration
	logger   *slog.Logger
	onChange func(ChangeEvent)

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	lastHash  string

	mu      sync.Mutex
	pending map[string]time.Time // path -> last event time
}

// NewWatcher creates a Watcher for the given FileSource. onChange is called
// with a ChangeEvent whenever the settings content changes.
func NewWatcher(source *FileSource, onChange func(ChangeEvent), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		source:   source,
		debounce: 500 * time.Millisecond,
		logger:   slog.Default(),
		onChange: onChange,
		done:     make(chan struct{}),
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching the settings file's directory for changes.
func (w *Watcher) Start() error {
	ctx := context.Background()
	hash, err := w.source.Hash(ctx)
	if err != nil {
		return fmt.Errorf("settings watcher: initial hash: %w", err)
	}
	w.lastHash = hash

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings watcher: create fsnotify: %w", err)
	}
	w.fsWatcher = fsw

	// Watch the directory so we catch atomic saves (rename-over).
	dir := filepath.Dir(w.source.Path())
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("settings watcher: watch %s: %w", dir, err)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop terminates the watcher and waits for the background goroutine to
// exit. It is safe to call Stop multiple times.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				// Enqueue the settings path for a hash check on any
				// write/create/rename in the watched directory. The hash
				// check in processChange prevents spurious reloads.
				w.mu.Lock()
				w.pending[w.source.Path()] = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("settings watcher error", "err", err)

		case <-ticker.C:
			w.processPending()
		}
	}
}

func (w *Watcher) processPending() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.processChange(path)
	}
}

// processChange loads the document, computes its hash, and calls onChange
// if the content has actually changed since the last known hash.
func (w *Watcher) processChange(path string) {
	if filepath.Clean(path) != filepath.Clean(w.source.Path()) {
		return
	}

	ctx := context.Background()

	doc, err := w.source.Load(ctx)
	if err != nil {
		w.logger.Error("settings watcher: failed to load settings", "path", path, "err", err)
		return
	}

	newHash, err := w.source.Hash(ctx)
	if err != nil {
		w.logger.Error("settings watcher: failed to hash settings", "path", path, "err", err)
		return
	}

	if newHash == w.lastHash {
		w.logger.Debug("settings watcher: content unchanged, skipping", "path", path)
		return
	}

	oldHash := w.lastHash
	w.lastHash = newHash

	w.logger.Info("settings changed", "path", path, "old_hash", oldHash[:8], "new_hash", newHash[:8])

	w.onChange(ChangeEvent{
		Source:   w.source.Name(),
		OldHash:  oldHash,
		NewHash:  newHash,
		Document: doc,
		Time:     time.Now(),
	})
}
