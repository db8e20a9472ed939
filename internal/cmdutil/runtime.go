// Package cmdutil carries state shared between the root command and its
// subcommands: the loaded configuration, the process logger, and helpers for
// assembling the engine from them.
package cmdutil

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/unzipd/unzipd/internal/archive"
	"github.com/unzipd/unzipd/internal/config"
	"github.com/unzipd/unzipd/internal/engine"
	"github.com/unzipd/unzipd/internal/extract"
	"github.com/unzipd/unzipd/internal/operation"
	"github.com/unzipd/unzipd/internal/pathguard"
)

var (
	loadedConfig *config.Config
	logger       *slog.Logger
)

// SetConfig stores the loaded configuration for subcommands.
func SetConfig(cfg *config.Config) {
	loadedConfig = cfg
}

// Config returns the configuration loaded by the root command.
func Config() *config.Config {
	return loadedConfig
}

// SetLogger stores the process logger for subcommands.
func SetLogger(l *slog.Logger) {
	logger = l
}

// Logger returns the process logger.
func Logger() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// LimitsFromConfig converts configured limits into archive limits.
func LimitsFromConfig(cfg *config.Config) archive.Limits {
	return archive.Limits{
		MaxArchiveSize:      cfg.Limits.MaxArchiveSize,
		MaxTotalSize:        cfg.Limits.MaxTotalSize,
		MaxEntryCount:       cfg.Limits.MaxEntryCount,
		MaxEntrySize:        cfg.Limits.MaxEntrySize,
		MaxCompressionRatio: cfg.Limits.MaxCompressionRatio,
	}
}

// PolicyFromConfig returns the configured default conflict policy.
func PolicyFromConfig(cfg *config.Config) (extract.ConflictPolicy, error) {
	return extract.ParsePolicy(cfg.Extract.ConflictPolicy)
}

// Retention returns the configured operation retention window.
func Retention(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Operations.RetentionMinutes) * time.Minute
}

// SweepInterval returns the configured registry sweep interval.
func SweepInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Operations.SweepIntervalSeconds) * time.Second
}

// BuildEngine assembles the extraction engine and its registry from config.
// If root is empty the configured root directory is used; with AllowAnyPath
// set, the guard accepts any existing directory.
func BuildEngine(cfg *config.Config, l *slog.Logger, root string) (*engine.Engine, *operation.Registry, error) {
	if root == "" {
		root = cfg.Extract.RootDir
	}
	if root == "" && !cfg.Extract.AllowAnyPath {
		return nil, nil, fmt.Errorf("no extraction root configured; set extract.root_dir or pass a path")
	}

	resolved, err := ResolvePath(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve root %q; %w", root, err)
	}

	var opts []pathguard.GuardOption
	if cfg.Extract.AllowAnyPath {
		opts = append(opts, pathguard.WithAllowAnyPath())
	}
	guard, err := pathguard.New(resolved, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create path guard; %w", err)
	}

	registry := operation.NewRegistry()
	eng := engine.New(engine.Config{
		Guard:       guard,
		Limits:      LimitsFromConfig(cfg),
		Workers:     cfg.Extract.Workers,
		Recursive:   cfg.Extract.Recursive,
		MaxLogLines: cfg.Operations.MaxLogLines,
	}, registry, l)

	return eng, registry, nil
}
