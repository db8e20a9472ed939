package operation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unzipd/unzipd/internal/extract"
)

// NotFoundError indicates a lookup for an unknown operation id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("operation not found: %s", e.ID)
}

// Spec describes the operation to create.
type Spec struct {
	Kind        Kind
	Root        string
	Policy      extract.ConflictPolicy
	Parallel    bool
	MaxLogLines int
}

// Registry tracks all live operations by id.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]*Operation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]*Operation)}
}

// Create registers a new pending operation and returns it.
func (r *Registry) Create(spec Spec) *Operation {
	op := &Operation{
		id:          uuid.NewString(),
		kind:        spec.Kind,
		root:        spec.Root,
		policy:      spec.Policy,
		parallel:    spec.Parallel,
		createdAt:   time.Now(),
		state:       StatePending,
		maxLogLines: spec.MaxLogLines,
	}

	r.mu.Lock()
	r.ops[op.id] = op
	r.mu.Unlock()

	return op
}

// Snapshot returns a copy of the operation's current state, or a
// NotFoundError if no operation has that id.
func (r *Registry) Snapshot(id string) (Snapshot, error) {
	r.mu.RLock()
	op, ok := r.ops[id]
	r.mu.RUnlock()

	if !ok {
		return Snapshot{}, &NotFoundError{ID: id}
	}
	return op.Snapshot(), nil
}

// Snapshots returns copies of every tracked operation.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	ops := make([]*Operation, 0, len(r.ops))
	for _, op := range r.ops {
		ops = append(ops, op)
	}
	r.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(ops))
	for _, op := range ops {
		snaps = append(snaps, op.Snapshot())
	}
	return snaps
}

// Sweep removes operations that reached a terminal state longer than
// retention ago. Pending and running operations are never evicted. Returns
// the number of operations removed.
func (r *Registry) Sweep(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, op := range r.ops {
		if op.terminalSince(cutoff) {
			delete(r.ops, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until ctx is canceled.
func (r *Registry) StartSweeper(ctx context.Context, logger *slog.Logger, interval, retention time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(retention); n > 0 {
					logger.Debug("swept finished operations", "removed", n)
				}
			}
		}
	}()
}
