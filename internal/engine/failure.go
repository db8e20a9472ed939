package engine

import (
	"errors"
	"fmt"

	"github.com/unzipd/unzipd/internal/archive"
	"github.com/unzipd/unzipd/internal/extract"
)

// failureMessage renders a pipeline error as the human-readable message
// carried on a failed result.
func failureMessage(err error) string {
	var (
		unsafe  *archive.UnsafeEntryPathError
		symlink *archive.SymlinkEntryError
		limit   *archive.LimitError
		space   *extract.InsufficientSpaceError
		write   *extract.WriteError
	)

	switch {
	case errors.Is(err, archive.ErrCorruptArchive):
		return fmt.Sprintf("corrupt archive: %v", err)
	case errors.As(err, &unsafe):
		return fmt.Sprintf("unsafe entry path: %s", unsafe.Entry)
	case errors.As(err, &symlink):
		return fmt.Sprintf("symlink entry rejected: %s", symlink.Entry)
	case errors.As(err, &limit):
		return limit.Error()
	case errors.As(err, &space):
		return space.Error()
	case errors.As(err, &write):
		return fmt.Sprintf("write failed: %v", write)
	default:
		return err.Error()
	}
}

// rejectionReason maps a pipeline error to a bounded metric label.
func rejectionReason(err error) string {
	var (
		unsafe  *archive.UnsafeEntryPathError
		symlink *archive.SymlinkEntryError
		limit   *archive.LimitError
		space   *extract.InsufficientSpaceError
		write   *extract.WriteError
	)

	switch {
	case errors.Is(err, archive.ErrCorruptArchive):
		return "corrupt"
	case errors.As(err, &unsafe):
		return "unsafe_path"
	case errors.As(err, &symlink):
		return "symlink"
	case errors.As(err, &limit):
		return "limit_" + string(limit.Which)
	case errors.As(err, &space):
		return "insufficient_space"
	case errors.As(err, &write):
		return "write_failed"
	default:
		return "other"
	}
}
