package watcher

import (
	"sync"
	"time"
)

// Arrival is one settled archive arrival.
type Arrival struct {
	Path      string
	Timestamp time.Time
}

// Coalescer debounces write bursts per path. An archive being copied into
// the watched tree produces many write events; the coalescer emits a single
// arrival once the path has been quiet for the debounce window.
type Coalescer struct {
	debounceWindow time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	events  chan Arrival
	stopCh  chan struct{}
	stopped bool
}

// NewCoalescer creates a new Coalescer with the given debounce window.
func NewCoalescer(debounceWindow time.Duration) *Coalescer {
	return &Coalescer{
		debounceWindow: debounceWindow,
		pending:        make(map[string]*time.Timer),
		events:         make(chan Arrival, 1000),
		stopCh:         make(chan struct{}),
	}
}

// Add records activity on a path, restarting its debounce timer.
func (c *Coalescer) Add(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	if timer, exists := c.pending[path]; exists {
		// Still being written; push the emit out again.
		timer.Stop()
	}
	c.pending[path] = time.AfterFunc(c.debounceWindow, func() {
		c.emit(path)
	})
}

// Forget drops a pending path without emitting it. Used when the file is
// removed before it settles.
func (c *Coalescer) Forget(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, exists := c.pending[path]; exists {
		timer.Stop()
		delete(c.pending, path)
	}
}

// Events returns the channel of settled arrivals.
func (c *Coalescer) Events() <-chan Arrival {
	return c.events
}

// Stop stops the coalescer and discards pending paths.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true

	for path, timer := range c.pending {
		timer.Stop()
		delete(c.pending, path)
	}
	c.mu.Unlock()

	close(c.stopCh)
	close(c.events)
}

// emit delivers a settled path. Late timer fires after Forget or Stop are
// no-ops because the pending map is checked under the lock.
func (c *Coalescer) emit(path string) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if _, exists := c.pending[path]; !exists {
		c.mu.Unlock()
		return
	}
	delete(c.pending, path)
	c.mu.Unlock()

	select {
	case c.events <- Arrival{Path: path, Timestamp: time.Now()}:
	case <-c.stopCh:
	}
}

// PendingCount returns the number of pending paths (for testing).
func (c *Coalescer) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
