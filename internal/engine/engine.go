// Package engine ties discovery, validation, extraction and operation
// tracking together. It exposes the asynchronous start/snapshot surface the
// HTTP layer and the one-shot CLI commands are built on.
package engine

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/unzipd/unzipd/internal/archive"
	"github.com/unzipd/unzipd/internal/extract"
	"github.com/unzipd/unzipd/internal/metrics"
	"github.com/unzipd/unzipd/internal/operation"
	"github.com/unzipd/unzipd/internal/pathguard"
	"github.com/unzipd/unzipd/internal/pool"
)

// Config holds the engine's immutable runtime settings.
type Config struct {
	Guard       *pathguard.Guard
	Limits      archive.Limits
	Workers     int
	Recursive   bool
	MaxLogLines int
}

// Engine runs extraction and cleanup operations against a registry.
type Engine struct {
	guard     *pathguard.Guard
	inspector *archive.Inspector
	executor  *extract.Executor
	registry  *operation.Registry
	logger    *slog.Logger
	workers   int
	recursive bool
	logLines  int
}

// New creates an engine. The registry must outlive the engine; snapshots of
// operations the engine starts are served from it.
func New(cfg Config, registry *operation.Registry, logger *slog.Logger) *Engine {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &Engine{
		guard:     cfg.Guard,
		inspector: archive.NewInspector(cfg.Limits),
		executor:  extract.NewExecutor(),
		registry:  registry,
		logger:    logger,
		workers:   workers,
		recursive: cfg.Recursive,
		logLines:  cfg.MaxLogLines,
	}
}

// StartExtraction validates root synchronously, registers an extraction
// operation and runs it in the background. The returned id is the caller's
// only handle on the operation.
func (e *Engine) StartExtraction(ctx context.Context, root string, policy extract.ConflictPolicy, parallel bool) (string, error) {
	resolved, err := e.guard.Resolve(root)
	if err != nil {
		return "", err
	}

	op := e.registry.Create(operation.Spec{
		Kind:        operation.KindExtract,
		Root:        resolved,
		Policy:      policy,
		Parallel:    parallel,
		MaxLogLines: e.logLines,
	})
	id := op.Snapshot().ID

	// The run outlives the caller. An HTTP request context ends when the
	// 202 response is written; that must not abort the operation.
	go e.runExtraction(context.WithoutCancel(ctx), op, id, resolved, policy, parallel)
	return id, nil
}

// StartCleanup validates root synchronously, registers a cleanup operation
// and runs it in the background.
func (e *Engine) StartCleanup(ctx context.Context, root string) (string, error) {
	resolved, err := e.guard.Resolve(root)
	if err != nil {
		return "", err
	}

	op := e.registry.Create(operation.Spec{
		Kind:        operation.KindCleanup,
		Root:        resolved,
		MaxLogLines: e.logLines,
	})
	id := op.Snapshot().ID

	go e.runCleanup(context.WithoutCancel(ctx), op, id, resolved)
	return id, nil
}

// Snapshot returns the current state of an operation by id.
func (e *Engine) Snapshot(id string) (operation.Snapshot, error) {
	return e.registry.Snapshot(id)
}

// RunExtraction is the synchronous variant used by one-shot CLI commands.
// It blocks until the operation reaches a terminal state and returns its
// final snapshot.
func (e *Engine) RunExtraction(ctx context.Context, root string, policy extract.ConflictPolicy, parallel bool) (operation.Snapshot, error) {
	resolved, err := e.guard.Resolve(root)
	if err != nil {
		return operation.Snapshot{}, err
	}

	op := e.registry.Create(operation.Spec{
		Kind:        operation.KindExtract,
		Root:        resolved,
		Policy:      policy,
		Parallel:    parallel,
		MaxLogLines: e.logLines,
	})
	id := op.Snapshot().ID

	e.runExtraction(ctx, op, id, resolved, policy, parallel)
	return op.Snapshot(), nil
}

// RunCleanup is the synchronous variant of StartCleanup.
func (e *Engine) RunCleanup(ctx context.Context, root string) (operation.Snapshot, error) {
	resolved, err := e.guard.Resolve(root)
	if err != nil {
		return operation.Snapshot{}, err
	}

	op := e.registry.Create(operation.Spec{
		Kind:        operation.KindCleanup,
		Root:        resolved,
		MaxLogLines: e.logLines,
	})
	id := op.Snapshot().ID

	e.runCleanup(ctx, op, id, resolved)
	return op.Snapshot(), nil
}

// ExtractArchive runs the inspect-then-extract pipeline for a single archive
// outside any tracked operation. Watch mode uses it for newly arrived
// archives.
func (e *Engine) ExtractArchive(ctx context.Context, archivePath string, policy extract.ConflictPolicy) extract.Result {
	result := e.extractOne(ctx, archivePath, policy)
	e.recordArchiveMetrics(result)
	e.logArchive("watch", result)
	return result
}

// runExtraction drives one extraction operation to a terminal state.
func (e *Engine) runExtraction(ctx context.Context, op *operation.Operation, id, root string, policy extract.ConflictPolicy, parallel bool) {
	op.MarkRunning()
	metrics.OperationsTotal.WithLabelValues(string(operation.KindExtract)).Inc()
	metrics.OperationsActive.Inc()
	start := time.Now()
	defer func() {
		metrics.OperationsActive.Dec()
		metrics.OperationDuration.WithLabelValues(string(operation.KindExtract)).Observe(time.Since(start).Seconds())
	}()

	e.logger.Info("extraction started",
		"operation", id,
		"root", root,
		"policy", string(policy),
		"parallel", parallel)

	workers := 1
	if parallel {
		workers = e.workers
	}

	candidates, walkErr := e.discover(ctx, op, root)
	results := pool.Run(ctx, candidates, workers, func(ctx context.Context, path string) extract.Result {
		return e.extractOne(ctx, path, policy)
	})

	for r := range results {
		op.RecordResult(r)
		e.recordArchiveMetrics(r)
		e.logArchive(id, r)
	}

	snap := op.Snapshot()
	if err := <-walkErr; err != nil {
		op.Finalize(operation.StateError, fmt.Sprintf("discovery failed: %v", err))
		e.logger.Error("extraction aborted",
			"operation", id,
			"root", root,
			"error", err)
		return
	}
	if err := ctx.Err(); err != nil {
		op.Finalize(operation.StateError, fmt.Sprintf(
			"canceled after %d of %d archives", snap.Processed, snap.Found))
		e.logger.Error("extraction canceled",
			"operation", id,
			"root", root,
			"processed", snap.Processed,
			"found", snap.Found)
		return
	}

	op.Finalize(operation.StateDone, fmt.Sprintf(
		"processed %d archives: %d extracted, %d skipped, %d failed",
		snap.Processed, snap.Success, snap.Skipped, snap.Failed))

	e.logger.Info("extraction finished",
		"operation", id,
		"root", root,
		"found", snap.Found,
		"success", snap.Success,
		"skipped", snap.Skipped,
		"failed", snap.Failed,
		"files", snap.Files,
		"bytes", snap.Bytes,
		"duration", time.Since(start).Round(time.Millisecond).String())
}

// discover walks root for .zip files, feeding each candidate to the returned
// channel and recording it on the operation. The error channel delivers at
// most one walk error after the candidate channel is closed.
func (e *Engine) discover(ctx context.Context, op *operation.Operation, root string) (<-chan string, <-chan error) {
	out := make(chan string)
	errCh := make(chan error, 1)

	emit := func(path string) bool {
		op.RecordFound(path)
		select {
		case out <- path:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(out)
		defer close(errCh)

		if !e.recursive {
			entries, err := os.ReadDir(root)
			if err != nil {
				errCh <- err
				return
			}
			for _, entry := range entries {
				if entry.IsDir() || !isZip(entry.Name()) {
					continue
				}
				if !emit(filepath.Join(root, entry.Name())) {
					return
				}
			}
			return
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() || !isZip(d.Name()) {
				return nil
			}
			if !emit(path) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil && err != ctx.Err() {
			errCh <- err
		}
	}()

	return out, errCh
}

// extractOne runs the inspect-then-extract pipeline for a single archive,
// converting every failure into a failed result.
func (e *Engine) extractOne(ctx context.Context, path string, policy extract.ConflictPolicy) extract.Result {
	start := time.Now()

	report, err := e.inspector.Inspect(path)
	if err != nil {
		metrics.RejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
		return extract.Result{ArchivePath: path, Message: failureMessage(err)}
	}

	result, err := e.executor.Extract(ctx, report, policy)
	if err != nil {
		metrics.RejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
		return extract.Result{ArchivePath: path, Message: failureMessage(err)}
	}

	if result.Success {
		metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	}
	return result
}

// recordArchiveMetrics folds one archive outcome into the counters.
func (e *Engine) recordArchiveMetrics(r extract.Result) {
	switch {
	case r.Success:
		metrics.ArchivesTotal.WithLabelValues("success").Inc()
		metrics.ExtractedFilesTotal.Add(float64(r.FileCount))
		metrics.ExtractedBytesTotal.Add(float64(r.Bytes))
	case r.Skipped:
		metrics.ArchivesTotal.WithLabelValues("skipped").Inc()
	default:
		metrics.ArchivesTotal.WithLabelValues("failed").Inc()
	}
}

// logArchive emits one structured record per archive outcome.
func (e *Engine) logArchive(id string, r extract.Result) {
	switch {
	case r.Success:
		e.logger.Info("archive extracted",
			"operation", id,
			"archive", r.ArchivePath,
			"target", r.TargetPath,
			"files", r.FileCount,
			"bytes", r.Bytes)
	case r.Skipped:
		e.logger.Info("archive skipped",
			"operation", id,
			"archive", r.ArchivePath,
			"reason", r.Message)
	default:
		e.logger.Warn("archive failed",
			"operation", id,
			"archive", r.ArchivePath,
			"error", r.Message)
	}
}

func isZip(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".zip")
}
