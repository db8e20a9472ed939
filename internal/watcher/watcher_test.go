package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type triggerRecorder struct {
	mu    sync.Mutex
	paths []string
	ch    chan string
}

func newTriggerRecorder() *triggerRecorder {
	return &triggerRecorder{ch: make(chan string, 16)}
}

func (r *triggerRecorder) trigger(ctx context.Context, path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	r.ch <- path
}

func (r *triggerRecorder) wait(t *testing.T, timeout time.Duration) (string, bool) {
	t.Helper()
	select {
	case p := <-r.ch:
		return p, true
	case <-time.After(timeout):
		return "", false
	}
}

func startTestWatcher(t *testing.T, root string, rec *triggerRecorder) *Watcher {
	t.Helper()

	w, err := New(rec.trigger,
		WithDebounceWindow(50*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Watch(root); err != nil {
		t.Fatalf("Watch(%s) error = %v", root, err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWatcher_TriggersOnArchiveArrival(t *testing.T) {
	dir := t.TempDir()
	rec := newTriggerRecorder()
	startTestWatcher(t, dir, rec)

	path := filepath.Join(dir, "incoming.zip")
	if err := os.WriteFile(path, []byte("PK\x03\x04 not a real zip"), 0644); err != nil {
		t.Fatal(err)
	}

	got, ok := rec.wait(t, 5*time.Second)
	if !ok {
		t.Fatal("trigger not called for arrived archive")
	}
	if got != path {
		t.Errorf("trigger path = %s, want %s", got, path)
	}
}

func TestWatcher_IgnoresNonArchiveFiles(t *testing.T) {
	dir := t.TempDir()
	rec := newTriggerRecorder()
	startTestWatcher(t, dir, rec)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if p, ok := rec.wait(t, 300*time.Millisecond); ok {
		t.Errorf("trigger called for non-archive: %s", p)
	}
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	rec := newTriggerRecorder()
	startTestWatcher(t, dir, rec)

	sub := filepath.Join(dir, "drop")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to pick up the new directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "nested.zip")
	if err := os.WriteFile(path, []byte("zipbytes"), 0644); err != nil {
		t.Fatal(err)
	}

	got, ok := rec.wait(t, 5*time.Second)
	if !ok {
		t.Fatal("trigger not called for archive in new subdirectory")
	}
	if got != path {
		t.Errorf("trigger path = %s, want %s", got, path)
	}
}

func TestWatcher_RemovedArchiveDoesNotTrigger(t *testing.T) {
	dir := t.TempDir()
	rec := newTriggerRecorder()

	w, err := New(rec.trigger,
		WithDebounceWindow(300*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	path := filepath.Join(dir, "ghost.zip")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	// Remove before the debounce window elapses.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if p, ok := rec.wait(t, time.Second); ok {
		t.Errorf("trigger called for removed archive: %s", p)
	}
}

func TestWatcher_StartStopLifecycle(t *testing.T) {
	dir := t.TempDir()
	rec := newTriggerRecorder()

	w, err := New(rec.trigger, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("second Start() should fail while running")
	}

	if !w.Stats().IsRunning {
		t.Error("Stats().IsRunning = false after Start")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestWatcher_WatchRejectsFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := New(func(context.Context, string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.fsWatcher.Close()

	if err := w.Watch(file); err == nil {
		t.Error("Watch() on a file should fail")
	}
}
