package config

import "runtime"

// Default configuration values.
const (
	DefaultLogLevel = "info"
	DefaultLogFile  = "~/.config/unzipd/unzipd.log"

	// Extraction defaults.
	DefaultConflictPolicy = "skip"
	DefaultRecursive      = true
	MaxDefaultWorkers     = 4

	// Archive safety limits.
	DefaultMaxArchiveSize      = 2 << 30  // 2 GiB
	DefaultMaxTotalSize        = 1 << 30  // 1 GiB
	DefaultMaxEntryCount       = 10000
	DefaultMaxEntrySize        = 100 << 20 // 100 MiB
	DefaultMaxCompressionRatio = 200.0

	// Operation registry defaults.
	DefaultRetentionMinutes     = 60
	DefaultSweepIntervalSeconds = 60
	DefaultMaxLogLines          = 500

	// Server defaults.
	DefaultHTTPPort        = 7700
	DefaultHTTPBind        = "127.0.0.1"
	DefaultShutdownTimeout = 30 // seconds
	DefaultAuthPasswordEnv = "UNZIPD_AUTH_PASSWORD"

	// Rate limiting defaults.
	DefaultRateLimitPerMinute = 60
	DefaultRateLimitBurst     = 10

	// Watch mode defaults.
	DefaultWatchDebounceSeconds = 2
)

// DefaultWorkers returns the default extraction concurrency: the number of
// CPUs, capped at MaxDefaultWorkers.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > MaxDefaultWorkers {
		return MaxDefaultWorkers
	}
	if n < 1 {
		return 1
	}
	return n
}

// NewDefaultConfig returns a Config populated with all default values.
func NewDefaultConfig() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		LogFile:  DefaultLogFile,
		Extract: ExtractConfig{
			RootDir:        "",
			AllowAnyPath:   false,
			ConflictPolicy: DefaultConflictPolicy,
			Workers:        DefaultWorkers(),
			Recursive:      DefaultRecursive,
		},
		Limits: LimitsConfig{
			MaxArchiveSize:      DefaultMaxArchiveSize,
			MaxTotalSize:        DefaultMaxTotalSize,
			MaxEntryCount:       DefaultMaxEntryCount,
			MaxEntrySize:        DefaultMaxEntrySize,
			MaxCompressionRatio: DefaultMaxCompressionRatio,
		},
		Operations: OperationsConfig{
			RetentionMinutes:     DefaultRetentionMinutes,
			SweepIntervalSeconds: DefaultSweepIntervalSeconds,
			MaxLogLines:          DefaultMaxLogLines,
		},
		Server: ServerConfig{
			HTTPPort:        DefaultHTTPPort,
			HTTPBind:        DefaultHTTPBind,
			ShutdownTimeout: DefaultShutdownTimeout,
			Auth: AuthConfig{
				Enabled:     false,
				PasswordEnv: DefaultAuthPasswordEnv,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: DefaultRateLimitPerMinute,
				Burst:             DefaultRateLimitBurst,
			},
		},
		Watch: WatchConfig{
			Enabled:         false,
			DebounceSeconds: DefaultWatchDebounceSeconds,
		},
	}
}
