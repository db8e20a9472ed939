package extract

import "fmt"

// ConflictPolicy selects what happens when an archive's target directory
// already exists.
type ConflictPolicy string

const (
	// PolicySkip leaves the existing target untouched and reports skipped.
	PolicySkip ConflictPolicy = "skip"

	// PolicyOverwrite extracts into the existing target directory,
	// replacing files with the same relative path.
	PolicyOverwrite ConflictPolicy = "overwrite"

	// PolicySuffix appends an incrementing numeric suffix to the target
	// name until an unused name is found.
	PolicySuffix ConflictPolicy = "suffix"
)

// ParsePolicy converts a string to a ConflictPolicy.
func ParsePolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(s) {
	case PolicySkip, PolicyOverwrite, PolicySuffix:
		return ConflictPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q (want skip, overwrite, or suffix)", s)
	}
}
