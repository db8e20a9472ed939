// Package extract writes validated archives to disk. Every archive is
// extracted into a temporary sibling directory and published to its final
// location with a rename, so a failed extraction never leaves partial state
// at the target path.
package extract

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/unzipd/unzipd/internal/archive"
)

// InsufficientSpaceError indicates the target filesystem lacks room for the
// archive's declared uncompressed size.
type InsufficientSpaceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient space: need %d bytes, %d available", e.Required, e.Available)
}

// WriteError indicates an I/O failure while writing an entry.
type WriteError struct {
	Entry string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write failed for entry %q: %v", e.Entry, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Result describes the outcome of extracting (or skipping) one archive.
type Result struct {
	ArchivePath string
	TargetPath  string
	Success     bool
	Skipped     bool
	Message     string
	FileCount   int
	Bytes       int64
}

// Executor performs atomic archive extraction.
type Executor struct {
	freeSpace func(dir string) (int64, error)
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithFreeSpaceFunc overrides the free-space probe. Used in tests.
func WithFreeSpaceFunc(fn func(dir string) (int64, error)) ExecutorOption {
	return func(e *Executor) {
		e.freeSpace = fn
	}
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{freeSpace: FreeSpace}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TargetFor returns the default extraction target for an archive: a sibling
// directory named after the archive without its extension.
func TargetFor(archivePath string) string {
	base := filepath.Base(archivePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(archivePath), stem)
}

// Extract writes the archive described by report under the conflict policy.
// On success or skip the returned Result is populated; any error means the
// archive failed and nothing was published to the target path.
func (e *Executor) Extract(ctx context.Context, report *archive.Report, policy ConflictPolicy) (Result, error) {
	archivePath := report.ArchivePath
	target := TargetFor(archivePath)

	merge := false
	if _, err := os.Stat(target); err == nil {
		switch policy {
		case PolicySkip:
			return Result{
				ArchivePath: archivePath,
				TargetPath:  target,
				Skipped:     true,
				Message:     "target directory already exists",
			}, nil
		case PolicySuffix:
			target = nextFreeTarget(target)
		case PolicyOverwrite:
			merge = true
		default:
			return Result{}, fmt.Errorf("unknown conflict policy %q", policy)
		}
	} else if !os.IsNotExist(err) {
		return Result{}, fmt.Errorf("failed to stat target %s; %w", target, err)
	}

	parent := filepath.Dir(target)
	avail, err := e.freeSpace(parent)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check free space on %s; %w", parent, err)
	}
	if report.TotalUncompressed > avail {
		return Result{}, &InsufficientSpaceError{Required: report.TotalUncompressed, Available: avail}
	}

	temp, err := os.MkdirTemp(parent, "."+filepath.Base(target)+".")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temp directory; %w", err)
	}

	files, bytes, err := e.writeEntries(ctx, archivePath, temp)
	if err != nil {
		os.RemoveAll(temp)
		return Result{}, err
	}

	if merge {
		if err := mergeDir(temp, target); err != nil {
			os.RemoveAll(temp)
			return Result{}, fmt.Errorf("failed to merge into %s; %w", target, err)
		}
		os.RemoveAll(temp)
	} else {
		if err := os.Rename(temp, target); err != nil {
			os.RemoveAll(temp)
			return Result{}, fmt.Errorf("failed to publish %s; %w", target, err)
		}
	}

	return Result{
		ArchivePath: archivePath,
		TargetPath:  target,
		Success:     true,
		Message:     fmt.Sprintf("OK (%d files)", files),
		FileCount:   files,
		Bytes:       bytes,
	}, nil
}

// writeEntries extracts every archive member into dir, preserving relative
// structure. Entry paths are re-validated independently of the inspector.
func (e *Executor) writeEntries(ctx context.Context, archivePath, dir string) (int, int64, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", archive.ErrCorruptArchive, archivePath, err)
	}
	defer zr.Close()

	files := 0
	var written int64

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		rel, ok := archive.NormalizeEntryPath(f.Name)
		if !ok {
			return 0, 0, &archive.UnsafeEntryPathError{Entry: f.Name}
		}
		dest := filepath.Join(dir, filepath.FromSlash(rel))

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return 0, 0, &WriteError{Entry: f.Name, Err: err}
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return 0, 0, &WriteError{Entry: f.Name, Err: err}
		}

		n, err := writeEntry(f, dest)
		if err != nil {
			return 0, 0, &WriteError{Entry: f.Name, Err: err}
		}
		files++
		written += n
	}

	return files, written, nil
}

// writeEntry copies one member to dest, refusing to write more bytes than
// the entry declared.
func writeEntry(f *zip.File, dest string) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, err
	}

	declared := int64(f.UncompressedSize64)
	n, err := io.Copy(out, io.LimitReader(rc, declared+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, err
	}
	if n > declared {
		return n, fmt.Errorf("entry exceeds declared size %d", declared)
	}
	return n, nil
}

// mergeDir moves the contents of src into dst, replacing files that share a
// relative path. Directories are created as needed; existing files not
// present in src are left alone.
func mergeDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return os.MkdirAll(dst, 0755)
		}
		dest := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(dest, 0755)
		}
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return err
		}
		return os.Rename(path, dest)
	})
}

// nextFreeTarget appends _1, _2, ... to target until the name is unused.
func nextFreeTarget(target string) string {
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", target, i)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
