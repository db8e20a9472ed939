// Package pathguard confines filesystem access to a configured root directory.
package pathguard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathRejectedError indicates a path failed boundary validation.
type PathRejectedError struct {
	Path   string
	Reason string
}

func (e *PathRejectedError) Error() string {
	return fmt.Sprintf("path rejected: %s: %s", e.Path, e.Reason)
}

// Guard validates user-supplied paths against an allowed root.
// The zero value is not usable; construct with New.
type Guard struct {
	root     string
	allowAny bool
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithAllowAnyPath disables the root confinement check.
// Existence and directory checks still apply.
func WithAllowAnyPath() GuardOption {
	return func(g *Guard) {
		g.allowAny = true
	}
}

// New creates a Guard confined to root. The root itself is resolved to a
// canonical absolute path; a root that cannot be resolved is an error.
func New(root string, opts ...GuardOption) (*Guard, error) {
	abs, err := filepath.Abs(ExpandHome(root))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve allowed root %q; %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Root may legitimately not exist yet when allow-any is set later;
		// keep the absolute form in that case.
		resolved = abs
	}

	g := &Guard{root: resolved}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Root returns the canonical allowed root.
func (g *Guard) Root() string {
	return g.root
}

// Resolve canonicalizes path and verifies it is an existing directory equal
// to or under the allowed root. Symlinks are followed before the boundary
// check, so a link pointing outside the root is rejected.
func (g *Guard) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", &PathRejectedError{Path: path, Reason: "empty path"}
	}

	abs, err := filepath.Abs(ExpandHome(path))
	if err != nil {
		return "", &PathRejectedError{Path: path, Reason: "cannot resolve to absolute path"}
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &PathRejectedError{Path: path, Reason: "does not exist"}
		}
		return "", &PathRejectedError{Path: path, Reason: fmt.Sprintf("cannot canonicalize: %v", err)}
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", &PathRejectedError{Path: path, Reason: "does not exist"}
	}
	if !info.IsDir() {
		return "", &PathRejectedError{Path: path, Reason: "not a directory"}
	}

	if !g.allowAny && !g.contains(resolved) {
		return "", &PathRejectedError{
			Path:   path,
			Reason: fmt.Sprintf("outside allowed root %s", g.root),
		}
	}

	return resolved, nil
}

// contains reports whether p equals or descends from the allowed root.
func (g *Guard) contains(p string) bool {
	rel, err := filepath.Rel(g.root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
		}
	}
	return path
}
