package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads and returns the typed configuration.
// It searches for configuration files in priority order:
//  1. Directory specified by UNZIPD_CONFIG_DIR environment variable
//  2. ~/.config/unzipd/
//  3. Current working directory (.)
//
// If no config file is found, returns an error directing user to run initialize.
// If a config file exists but is invalid, returns a validation error.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Setup environment variable support
	v.SetEnvPrefix("UNZIPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Register default values
	setViperDefaults(v)

	// Add config paths in priority order
	if envPath := os.Getenv("UNZIPD_CONFIG_DIR"); envPath != "" {
		v.AddConfigPath(envPath)
	}

	if home := os.Getenv("HOME"); home != "" {
		v.AddConfigPath(filepath.Join(home, ".config", "unzipd"))
	}

	v.AddConfigPath(".")

	// Read config file
	err := v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("no config file found; run 'unzipd initialize' to create one")
		}
		return nil, fmt.Errorf("failed to read config; %w", err)
	}

	return unmarshalConfig(v)
}

// LoadFromPath reads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Setup environment variable support
	v.SetEnvPrefix("UNZIPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Register default values
	setViperDefaults(v)

	err := v.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to read config from %s; %w", path, err)
	}

	return unmarshalConfig(v)
}

// LoadWithDefaults returns configuration using defaults only.
// Use this in contexts where config file is not required (e.g., initialize command).
func LoadWithDefaults() *Config {
	cfg := NewDefaultConfig()
	return &cfg
}

// unmarshalConfig converts viper config to typed Config struct.
func unmarshalConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	err := v.Unmarshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config; %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setViperDefaults registers all default configuration values with a viper instance.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", DefaultLogFile)

	// Extraction defaults
	v.SetDefault("extract.root_dir", "")
	v.SetDefault("extract.allow_any_path", false)
	v.SetDefault("extract.conflict_policy", DefaultConflictPolicy)
	v.SetDefault("extract.workers", DefaultWorkers())
	v.SetDefault("extract.recursive", DefaultRecursive)

	// Limit defaults
	v.SetDefault("limits.max_archive_size", DefaultMaxArchiveSize)
	v.SetDefault("limits.max_total_size", DefaultMaxTotalSize)
	v.SetDefault("limits.max_entry_count", DefaultMaxEntryCount)
	v.SetDefault("limits.max_entry_size", DefaultMaxEntrySize)
	v.SetDefault("limits.max_compression_ratio", DefaultMaxCompressionRatio)

	// Operation registry defaults
	v.SetDefault("operations.retention_minutes", DefaultRetentionMinutes)
	v.SetDefault("operations.sweep_interval_seconds", DefaultSweepIntervalSeconds)
	v.SetDefault("operations.max_log_lines", DefaultMaxLogLines)

	// Server defaults
	v.SetDefault("server.http_port", DefaultHTTPPort)
	v.SetDefault("server.http_bind", DefaultHTTPBind)
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("server.auth.enabled", false)
	v.SetDefault("server.auth.username", "")
	v.SetDefault("server.auth.password_env", DefaultAuthPasswordEnv)
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.requests_per_minute", DefaultRateLimitPerMinute)
	v.SetDefault("server.rate_limit.burst", DefaultRateLimitBurst)

	// Watch mode defaults
	v.SetDefault("watch.enabled", false)
	v.SetDefault("watch.debounce_seconds", DefaultWatchDebounceSeconds)
}
