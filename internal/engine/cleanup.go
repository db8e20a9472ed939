package engine

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/unzipd/unzipd/internal/archive"
	"github.com/unzipd/unzipd/internal/extract"
	"github.com/unzipd/unzipd/internal/metrics"
	"github.com/unzipd/unzipd/internal/operation"
	"github.com/unzipd/unzipd/internal/pool"
)

// runCleanup drives one cleanup operation to a terminal state. Cleanup
// deletes archives whose extracted target directory is present and complete;
// everything else is left alone.
func (e *Engine) runCleanup(ctx context.Context, op *operation.Operation, id, root string) {
	op.MarkRunning()
	metrics.OperationsTotal.WithLabelValues(string(operation.KindCleanup)).Inc()
	metrics.OperationsActive.Inc()
	start := time.Now()
	defer func() {
		metrics.OperationsActive.Dec()
		metrics.OperationDuration.WithLabelValues(string(operation.KindCleanup)).Observe(time.Since(start).Seconds())
	}()

	e.logger.Info("cleanup started", "operation", id, "root", root)

	candidates, walkErr := e.discover(ctx, op, root)
	results := pool.Run(ctx, candidates, e.workers, func(ctx context.Context, path string) extract.Result {
		return e.cleanupOne(path)
	})

	for r := range results {
		op.RecordResult(r)
		e.logCleanup(id, r)
		if r.Success {
			metrics.CleanupDeletedTotal.Inc()
			metrics.CleanupFreedBytesTotal.Add(float64(r.Bytes))
		}
	}

	snap := op.Snapshot()
	if err := <-walkErr; err != nil {
		op.Finalize(operation.StateError, fmt.Sprintf("discovery failed: %v", err))
		e.logger.Error("cleanup aborted", "operation", id, "root", root, "error", err)
		return
	}
	if err := ctx.Err(); err != nil {
		op.Finalize(operation.StateError, fmt.Sprintf(
			"canceled after %d of %d archives", snap.Processed, snap.Found))
		e.logger.Error("cleanup canceled",
			"operation", id,
			"root", root,
			"processed", snap.Processed,
			"found", snap.Found)
		return
	}

	op.Finalize(operation.StateDone, fmt.Sprintf(
		"processed %d archives: %d deleted, %d kept, %d failed",
		snap.Processed, snap.Success, snap.Skipped, snap.Failed))

	e.logger.Info("cleanup finished",
		"operation", id,
		"root", root,
		"found", snap.Found,
		"deleted", snap.Success,
		"kept", snap.Skipped,
		"failed", snap.Failed,
		"freed_bytes", snap.Bytes,
		"duration", time.Since(start).Round(time.Millisecond).String())
}

// cleanupOne deletes one archive if its extracted target is verifiably
// complete. A successful result carries the freed byte count.
func (e *Engine) cleanupOne(path string) extract.Result {
	target := extract.TargetFor(path)

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return extract.Result{ArchivePath: path, TargetPath: target, Skipped: true,
			Message: "kept: no extracted target directory"}
	}

	missing, err := missingMembers(path, target)
	if err != nil {
		return extract.Result{ArchivePath: path, TargetPath: target,
			Message: failureMessage(err)}
	}
	if missing != "" {
		return extract.Result{ArchivePath: path, TargetPath: target, Skipped: true,
			Message: fmt.Sprintf("kept: extracted target missing %q", missing)}
	}

	archiveInfo, err := os.Stat(path)
	if err != nil {
		return extract.Result{ArchivePath: path, TargetPath: target,
			Message: fmt.Sprintf("stat archive: %v", err)}
	}
	if err := os.Remove(path); err != nil {
		return extract.Result{ArchivePath: path, TargetPath: target,
			Message: fmt.Sprintf("delete archive: %v", err)}
	}

	return extract.Result{
		ArchivePath: path,
		TargetPath:  target,
		Success:     true,
		Bytes:       archiveInfo.Size(),
		Message:     fmt.Sprintf("deleted (freed %d bytes)", archiveInfo.Size()),
	}
}

// missingMembers returns the first non-directory archive member that has no
// counterpart under target, or "" if the extracted tree is complete.
func missingMembers(archivePath, target string) (string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", archive.ErrCorruptArchive, archivePath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rel, ok := archive.NormalizeEntryPath(f.Name)
		if !ok {
			return "", &archive.UnsafeEntryPathError{Entry: f.Name}
		}
		if _, err := os.Stat(filepath.Join(target, filepath.FromSlash(rel))); err != nil {
			return rel, nil
		}
	}
	return "", nil
}

// logCleanup emits one structured record per cleanup outcome.
func (e *Engine) logCleanup(id string, r extract.Result) {
	switch {
	case r.Success:
		e.logger.Info("archive deleted",
			"operation", id,
			"archive", r.ArchivePath,
			"freed_bytes", r.Bytes)
	case r.Skipped:
		e.logger.Info("archive kept",
			"operation", id,
			"archive", r.ArchivePath,
			"reason", r.Message)
	default:
		e.logger.Warn("cleanup failed",
			"operation", id,
			"archive", r.ArchivePath,
			"error", r.Message)
	}
}
