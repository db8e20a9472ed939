// Package config loads, validates and writes the typed unzipd
// configuration. Configuration is read once at startup and treated as
// immutable for the process lifetime.
package config

import (
	"os"
	"path/filepath"
)

// expandHome expands a leading ~ in path to the user's home directory.
// Only expands "~" alone or "~/..." patterns. Patterns like "~user" are not expanded.
// Returns the path unchanged if it doesn't start with ~/ or if home dir cannot be determined.
func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	// Only expand "~" or "~/..."
	if len(path) > 1 && path[1] != '/' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if len(path) == 1 {
		return home
	}

	return filepath.Join(home, path[2:])
}

// ExpandPath expands a leading ~ in a configured path.
func ExpandPath(path string) string {
	return expandHome(path)
}

// resolveHomeDir returns the user's home directory or "" if unknown.
func resolveHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
