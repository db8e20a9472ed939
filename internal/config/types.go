package config

import "os"

// Config is the root configuration structure for the application.
type Config struct {
	LogLevel   string           `yaml:"log_level" mapstructure:"log_level"`
	LogFile    string           `yaml:"log_file" mapstructure:"log_file"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Limits     LimitsConfig     `yaml:"limits" mapstructure:"limits"`
	Operations OperationsConfig `yaml:"operations" mapstructure:"operations"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Watch      WatchConfig      `yaml:"watch" mapstructure:"watch"`
}

// ExtractConfig holds extraction behavior configuration.
type ExtractConfig struct {
	RootDir        string `yaml:"root_dir" mapstructure:"root_dir"`
	AllowAnyPath   bool   `yaml:"allow_any_path" mapstructure:"allow_any_path"`
	ConflictPolicy string `yaml:"conflict_policy" mapstructure:"conflict_policy"`
	Workers        int    `yaml:"workers" mapstructure:"workers"`
	Recursive      bool   `yaml:"recursive" mapstructure:"recursive"`
}

// LimitsConfig holds archive safety limits. All sizes are in bytes; a zero
// value disables that check.
type LimitsConfig struct {
	MaxArchiveSize      int64   `yaml:"max_archive_size" mapstructure:"max_archive_size"`
	MaxTotalSize        int64   `yaml:"max_total_size" mapstructure:"max_total_size"`
	MaxEntryCount       int     `yaml:"max_entry_count" mapstructure:"max_entry_count"`
	MaxEntrySize        int64   `yaml:"max_entry_size" mapstructure:"max_entry_size"`
	MaxCompressionRatio float64 `yaml:"max_compression_ratio" mapstructure:"max_compression_ratio"`
}

// OperationsConfig holds operation registry configuration.
type OperationsConfig struct {
	RetentionMinutes     int `yaml:"retention_minutes" mapstructure:"retention_minutes"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds" mapstructure:"sweep_interval_seconds"`
	MaxLogLines          int `yaml:"max_log_lines" mapstructure:"max_log_lines"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTPPort        int             `yaml:"http_port" mapstructure:"http_port"`
	HTTPBind        string          `yaml:"http_bind" mapstructure:"http_bind"`
	ShutdownTimeout int             `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	Auth            AuthConfig      `yaml:"auth" mapstructure:"auth"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AuthConfig holds HTTP basic auth configuration.
type AuthConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Username    string  `yaml:"username" mapstructure:"username"`
	Password    *string `yaml:"password,omitempty" mapstructure:"password"`
	PasswordEnv string  `yaml:"password_env" mapstructure:"password_env"`
}

// ResolvePassword returns the password from config or falls back to the
// environment variable.
func (c *AuthConfig) ResolvePassword() string {
	if c.Password != nil && *c.Password != "" {
		return *c.Password
	}
	return os.Getenv(c.PasswordEnv)
}

// RateLimitConfig holds per-client request rate limiting configuration.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// WatchConfig holds filesystem watch mode configuration.
type WatchConfig struct {
	Enabled         bool `yaml:"enabled" mapstructure:"enabled"`
	DebounceSeconds int  `yaml:"debounce_seconds" mapstructure:"debounce_seconds"`
}
