package archive

import (
	"errors"
	"fmt"
)

// ErrCorruptArchive indicates the ZIP container could not be parsed.
var ErrCorruptArchive = errors.New("corrupt archive")

// UnsafeEntryPathError indicates an entry path that would escape the
// extraction directory (traversal, absolute path, drive prefix).
type UnsafeEntryPathError struct {
	Entry string
}

func (e *UnsafeEntryPathError) Error() string {
	return fmt.Sprintf("unsafe entry path: %q", e.Entry)
}

// SymlinkEntryError indicates an entry whose stored attribute bits mark it
// as a symbolic link.
type SymlinkEntryError struct {
	Entry string
}

func (e *SymlinkEntryError) Error() string {
	return fmt.Sprintf("symlink entry rejected: %q", e.Entry)
}

// Limit names the extraction limit a LimitError refers to.
type Limit string

const (
	LimitArchiveSize      Limit = "archive_size"
	LimitTotalSize        Limit = "total_size"
	LimitEntryCount       Limit = "entry_count"
	LimitEntrySize        Limit = "entry_size"
	LimitCompressionRatio Limit = "compression_ratio"
)

// LimitError indicates a configured extraction limit was exceeded.
type LimitError struct {
	Which Limit
	Value int64
	Max   int64
	Entry string
}

func (e *LimitError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("limit exceeded: %s: %d > %d (entry %q)", e.Which, e.Value, e.Max, e.Entry)
	}
	return fmt.Sprintf("limit exceeded: %s: %d > %d", e.Which, e.Value, e.Max)
}
