// Package operation tracks the lifecycle and progress of long-running
// extraction and cleanup jobs. Operations are owned by a Registry; callers
// only ever see immutable snapshots.
package operation

import (
	"fmt"
	"sync"
	"time"

	"github.com/unzipd/unzipd/internal/extract"
)

// Kind distinguishes what an operation does.
type Kind string

const (
	KindExtract Kind = "extract"
	KindCleanup Kind = "cleanup"
)

// State is an operation lifecycle state. Transitions only move forward:
// pending -> running -> done | error.
type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateDone    State = "done"
	StateError   State = "error"
)

// IsTerminal reports whether the state permits no further transitions.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateError
}

// DefaultMaxLogLines bounds the per-operation message log.
const DefaultMaxLogLines = 500

// Operation is one tracked job. All mutable fields are guarded by mu; the
// struct must not be shared outside the registry, which hands out Snapshot
// copies instead.
type Operation struct {
	id        string
	kind      Kind
	root      string
	policy    extract.ConflictPolicy
	parallel  bool
	createdAt time.Time

	mu          sync.Mutex
	state       State
	message     string
	found       int
	processed   int
	success     int
	failed      int
	skipped     int
	files       int
	bytes       int64
	current     string
	logLines    []string
	maxLogLines int
	finishedAt  time.Time
}

// Snapshot is an immutable copy of an operation's progress fields.
type Snapshot struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Root       string    `json:"root"`
	Policy     string    `json:"conflict_policy,omitempty"`
	Parallel   bool      `json:"parallel"`
	State      State     `json:"state"`
	Message    string    `json:"message,omitempty"`
	Found      int       `json:"found"`
	Processed  int       `json:"processed"`
	Success    int       `json:"success"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Files      int       `json:"files"`
	Bytes      int64     `json:"bytes"`
	Current    string    `json:"current,omitempty"`
	Log        []string  `json:"log"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// MarkRunning transitions pending -> running. Any other transition is
// ignored; states never move backward.
func (op *Operation) MarkRunning() {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state == StatePending {
		op.state = StateRunning
	}
}

// RecordFound notes that discovery yielded another candidate archive.
func (op *Operation) RecordFound(archivePath string) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state.IsTerminal() {
		return
	}
	op.found++
	op.current = archivePath
}

// RecordResult folds one archive result into the progress counters and the
// bounded message log.
func (op *Operation) RecordResult(r extract.Result) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state.IsTerminal() {
		return
	}

	op.processed++
	if op.processed > op.found {
		// processed never exceeds found
		op.found = op.processed
	}

	var status string
	switch {
	case r.Success:
		op.success++
		op.files += r.FileCount
		op.bytes += r.Bytes
		status = "OK"
	case r.Skipped:
		op.skipped++
		status = "SKIP"
	default:
		op.failed++
		status = "ERROR"
	}
	op.current = r.ArchivePath

	op.appendLog(fmt.Sprintf("%s: %s - %s", status, r.ArchivePath, r.Message))
}

// Finalize moves the operation to a terminal state. Calls on an already
// terminal operation are ignored.
func (op *Operation) Finalize(state State, message string) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state.IsTerminal() {
		return
	}
	if state != StateDone && state != StateError {
		return
	}
	op.state = state
	if message != "" {
		op.message = message
	}
	op.current = ""
	op.finishedAt = time.Now()
}

// Snapshot returns an immutable copy of the current fields.
func (op *Operation) Snapshot() Snapshot {
	op.mu.Lock()
	defer op.mu.Unlock()

	logCopy := make([]string, len(op.logLines))
	copy(logCopy, op.logLines)

	return Snapshot{
		ID:         op.id,
		Kind:       op.kind,
		Root:       op.root,
		Policy:     string(op.policy),
		Parallel:   op.parallel,
		State:      op.state,
		Message:    op.message,
		Found:      op.found,
		Processed:  op.processed,
		Success:    op.success,
		Failed:     op.failed,
		Skipped:    op.skipped,
		Files:      op.files,
		Bytes:      op.bytes,
		Current:    op.current,
		Log:        logCopy,
		CreatedAt:  op.createdAt,
		FinishedAt: op.finishedAt,
	}
}

// appendLog adds a line, trimming the oldest once the bound is reached.
// Callers must hold op.mu.
func (op *Operation) appendLog(line string) {
	max := op.maxLogLines
	if max <= 0 {
		max = DefaultMaxLogLines
	}
	op.logLines = append(op.logLines, line)
	if len(op.logLines) > max {
		op.logLines = op.logLines[len(op.logLines)-max:]
	}
}

// terminalSince reports whether the operation reached a terminal state at or
// before cutoff. Non-terminal operations never qualify.
func (op *Operation) terminalSince(cutoff time.Time) bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state.IsTerminal() && !op.finishedAt.IsZero() && op.finishedAt.Before(cutoff)
}
