// Package archive validates ZIP archives against safety rules and extraction
// limits before any byte is written. Inspection reads container metadata only.
package archive

import (
	"archive/zip"
	"fmt"
	"os"
	"path"
	"strings"
)

// Limits bounds what an archive may demand from the host during extraction.
// A zero limit means the corresponding check is skipped.
type Limits struct {
	// MaxArchiveSize is the maximum size of the ZIP file itself, in bytes.
	MaxArchiveSize int64

	// MaxTotalSize is the maximum sum of declared uncompressed entry sizes.
	MaxTotalSize int64

	// MaxEntryCount is the maximum number of entries, directories included.
	MaxEntryCount int

	// MaxEntrySize is the maximum declared uncompressed size of one entry.
	MaxEntrySize int64

	// MaxCompressionRatio is the maximum uncompressed/compressed ratio for
	// any entry. Entries with zero compressed size but nonzero uncompressed
	// size are treated as exceeding any ratio.
	MaxCompressionRatio float64
}

// DefaultLimits mirrors the service defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxArchiveSize:      2 << 30,
		MaxTotalSize:        1 << 30,
		MaxEntryCount:       10000,
		MaxEntrySize:        100 << 20,
		MaxCompressionRatio: 200,
	}
}

// Entry describes one validated archive member.
type Entry struct {
	// Path is the normalized slash-separated relative path.
	Path string

	// UncompressedSize is the declared size after extraction.
	UncompressedSize int64

	// CompressedSize is the declared stored size.
	CompressedSize int64

	// Dir reports whether the entry is a directory record.
	Dir bool
}

// Report is the outcome of a successful inspection.
type Report struct {
	ArchivePath string
	ArchiveSize int64
	Entries     []Entry

	// TotalUncompressed is the sum of declared uncompressed sizes.
	TotalUncompressed int64

	// FileCount counts non-directory entries.
	FileCount int
}

// Inspector validates archives against a fixed set of Limits.
type Inspector struct {
	limits Limits
}

// NewInspector creates an Inspector with the given limits.
func NewInspector(limits Limits) *Inspector {
	return &Inspector{limits: limits}
}

// Limits returns the configured limits.
func (in *Inspector) Limits() Limits {
	return in.limits
}

// Inspect opens the archive for metadata enumeration and validates every
// entry. It fails on the first violation and performs no filesystem writes.
func (in *Inspector) Inspect(archivePath string) (*Report, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive; %w", err)
	}
	if in.limits.MaxArchiveSize > 0 && info.Size() > in.limits.MaxArchiveSize {
		return nil, &LimitError{Which: LimitArchiveSize, Value: info.Size(), Max: in.limits.MaxArchiveSize}
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArchive, archivePath, err)
	}
	defer zr.Close()

	if in.limits.MaxEntryCount > 0 && len(zr.File) > in.limits.MaxEntryCount {
		return nil, &LimitError{Which: LimitEntryCount, Value: int64(len(zr.File)), Max: int64(in.limits.MaxEntryCount)}
	}

	report := &Report{
		ArchivePath: archivePath,
		ArchiveSize: info.Size(),
		Entries:     make([]Entry, 0, len(zr.File)),
	}

	for _, f := range zr.File {
		normalized, ok := NormalizeEntryPath(f.Name)
		if !ok {
			return nil, &UnsafeEntryPathError{Entry: f.Name}
		}

		if f.Mode()&os.ModeSymlink != 0 {
			return nil, &SymlinkEntryError{Entry: f.Name}
		}

		dir := f.FileInfo().IsDir()
		size := int64(f.UncompressedSize64)
		compressed := int64(f.CompressedSize64)

		if !dir {
			if in.limits.MaxEntrySize > 0 && size > in.limits.MaxEntrySize {
				return nil, &LimitError{Which: LimitEntrySize, Value: size, Max: in.limits.MaxEntrySize, Entry: f.Name}
			}
			if in.limits.MaxCompressionRatio > 0 {
				if compressed == 0 && size > 0 {
					return nil, &LimitError{
						Which: LimitCompressionRatio,
						Value: size,
						Max:   int64(in.limits.MaxCompressionRatio),
						Entry: f.Name,
					}
				}
				if compressed > 0 && float64(size)/float64(compressed) > in.limits.MaxCompressionRatio {
					// Round the ratio up so the reported value always
					// exceeds the limit it violated.
					return nil, &LimitError{
						Which: LimitCompressionRatio,
						Value: (size + compressed - 1) / compressed,
						Max:   int64(in.limits.MaxCompressionRatio),
						Entry: f.Name,
					}
				}
			}
			report.TotalUncompressed += size
			report.FileCount++
		}

		report.Entries = append(report.Entries, Entry{
			Path:             normalized,
			UncompressedSize: size,
			CompressedSize:   compressed,
			Dir:              dir,
		})
	}

	if in.limits.MaxTotalSize > 0 && report.TotalUncompressed > in.limits.MaxTotalSize {
		return nil, &LimitError{Which: LimitTotalSize, Value: report.TotalUncompressed, Max: in.limits.MaxTotalSize}
	}

	return report, nil
}

// NormalizeEntryPath converts an archive member name to a slash-separated
// relative path. It returns ok=false for absolute paths, paths containing a
// parent-directory segment, Windows drive prefixes, or paths that resolve
// to nothing once cleaned.
func NormalizeEntryPath(name string) (string, bool) {
	normalized := strings.ReplaceAll(name, `\`, "/")

	if strings.HasPrefix(normalized, "/") {
		return "", false
	}
	if len(normalized) >= 2 && normalized[1] == ':' {
		return "", false
	}

	for _, part := range strings.Split(normalized, "/") {
		if part == ".." {
			return "", false
		}
	}

	// Cleaning against a synthetic root guarantees the joined path cannot
	// leave the extraction directory.
	cleaned := path.Clean("/" + normalized)
	if cleaned == "/" {
		return "", false
	}

	return strings.TrimPrefix(cleaned, "/"), true
}
