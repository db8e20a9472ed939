package logging

import (
	"log/slog"
	"strings"
)

// DefaultLevel applies when no level is configured.
const DefaultLevel = slog.LevelInfo

// ParseLevel maps a configured level name to a slog.Level. Matching is
// case-insensitive and accepts "warning" as an alias for "warn".
// Unrecognized names return (DefaultLevel, false).
func ParseLevel(s string) (level slog.Level, ok bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return DefaultLevel, false
	}
}

// ParseLevelOrDefault is ParseLevel with the failure case folded into
// DefaultLevel.
func ParseLevelOrDefault(s string) slog.Level {
	level, _ := ParseLevel(s)
	return level
}
