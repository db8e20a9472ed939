// Package watcher monitors a directory tree for newly arrived ZIP archives
// and triggers extraction once each archive has settled on disk.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/unzipd/unzipd/internal/metrics"
)

// TriggerFunc is called once per settled archive arrival.
type TriggerFunc func(ctx context.Context, archivePath string)

// Stats contains statistics about watcher activity.
type Stats struct {
	WatchedDirs    int
	EventsReceived int64
	Triggers       int64
	Errors         int64
	IsRunning      bool
	DegradedMode   bool
}

// Option configures the Watcher.
type Option func(*Watcher)

// WithDebounceWindow sets the debounce window for arrival coalescing.
func WithDebounceWindow(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceWindow = d
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// Watcher watches a root directory tree for arriving archives.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	trigger   TriggerFunc
	coalescer *Coalescer
	logger    *slog.Logger

	debounceWindow time.Duration

	mu       sync.RWMutex
	stats    Stats
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New creates a Watcher that calls trigger for every settled archive.
func New(trigger TriggerFunc, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher; %w", err)
	}

	w := &Watcher{
		fsWatcher:      fsw,
		trigger:        trigger,
		logger:         slog.Default(),
		debounceWindow: 2 * time.Second,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.coalescer = NewCoalescer(w.debounceWindow)

	return w, nil
}

// Watch starts watching a root directory and its subdirectories.
func (w *Watcher) Watch(root string) error {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path; %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to stat path; %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", absPath)
	}

	err = filepath.WalkDir(absPath, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // Skip directories we can't access
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.addWatch(p); err != nil {
			w.logger.Warn("failed to add watch", "path", p, "error", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk directory; %w", err)
	}

	return nil
}

// addWatch adds a single directory to the fsnotify watcher.
func (w *Watcher) addWatch(path string) error {
	if err := w.fsWatcher.Add(path); err != nil {
		if isWatchLimitError(err) {
			w.mu.Lock()
			w.stats.DegradedMode = true
			w.mu.Unlock()
			w.logger.Warn("watch limit reached, entering degraded mode", "path", path)
			return nil
		}
		return err
	}
	w.mu.Lock()
	w.stats.WatchedDirs++
	w.mu.Unlock()
	return nil
}

// Start begins processing filesystem events.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.stats.IsRunning = true
	w.mu.Unlock()

	go w.processEvents(ctx)
	go w.processArrivals(ctx)

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	var stopErr error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		if !w.running {
			w.mu.Unlock()
			return
		}
		w.running = false
		w.stats.IsRunning = false
		w.mu.Unlock()

		// Stop coalescer first to unblock processArrivals
		w.coalescer.Stop()

		close(w.stopCh)
		<-w.doneCh

		stopErr = w.fsWatcher.Close()
	})
	return stopErr
}

// Stats returns current watcher statistics.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// processEvents reads from fsnotify and feeds the coalescer.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}

// handleFsEvent processes a single fsnotify event.
func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	w.mu.Lock()
	w.stats.EventsReceived++
	w.mu.Unlock()
	metrics.WatcherEventsTotal.WithLabelValues(event.Op.String()).Inc()

	// New subdirectories get watched so archives dropped into them are seen.
	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if err := w.addWatch(event.Name); err != nil {
				w.logger.Warn("failed to add watch for new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !isArchive(event.Name) || isTransferArtifact(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.coalescer.Forget(event.Name)
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		w.coalescer.Add(event.Name)
	}
}

// processArrivals triggers extraction for settled archives.
func (w *Watcher) processArrivals(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case arrival, ok := <-w.coalescer.Events():
			if !ok {
				return
			}
			w.handleArrival(ctx, arrival)
		}
	}
}

// handleArrival fires the trigger for one settled archive.
func (w *Watcher) handleArrival(ctx context.Context, arrival Arrival) {
	// The file may have vanished while debouncing.
	info, err := os.Stat(arrival.Path)
	if err != nil || info.IsDir() {
		return
	}

	w.logger.Info("archive arrived", "path", arrival.Path, "size", info.Size())
	metrics.WatcherTriggersTotal.Inc()
	w.mu.Lock()
	w.stats.Triggers++
	w.mu.Unlock()

	w.trigger(ctx, arrival.Path)
}

// isArchive reports whether the path names a ZIP file.
func isArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

// isTransferArtifact returns true for partial-download names some tools use
// while a file is still in flight.
func isTransferArtifact(path string) bool {
	name := filepath.Base(path)
	for _, suffix := range []string{".part", ".partial", ".crdownload", ".tmp"} {
		if strings.HasSuffix(name, suffix+".zip") || strings.Contains(name, ".zip"+suffix) {
			return true
		}
	}
	return false
}

// isWatchLimitError checks if an error indicates watch limit exhaustion.
func isWatchLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "too many open files") ||
		strings.Contains(errStr, "no space left on device") ||
		strings.Contains(errStr, "user limit on total number of inotify watches")
}
