package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a config validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("config validation failed:\n")
	for _, err := range e {
		b.WriteString("  - ")
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

// validConflictPolicies lists recognized conflict policies.
var validConflictPolicies = map[string]bool{
	"skip":      true,
	"overwrite": true,
	"suffix":    true,
}

// Validate checks the configuration for errors.
// Returns ValidationErrors if validation fails.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	// Validate extraction config
	if cfg.Extract.ConflictPolicy == "" {
		errs = append(errs, ValidationError{
			Field:   "extract.conflict_policy",
			Message: "must not be empty",
		})
	} else if !validConflictPolicies[cfg.Extract.ConflictPolicy] {
		errs = append(errs, ValidationError{
			Field:   "extract.conflict_policy",
			Message: fmt.Sprintf("must be one of: skip, overwrite, suffix; got %q", cfg.Extract.ConflictPolicy),
		})
	}

	if cfg.Extract.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "extract.workers",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Extract.Workers),
		})
	}

	// Validate limit config
	if cfg.Limits.MaxArchiveSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "limits.max_archive_size",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Limits.MaxArchiveSize),
		})
	}

	if cfg.Limits.MaxTotalSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "limits.max_total_size",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Limits.MaxTotalSize),
		})
	}

	if cfg.Limits.MaxEntryCount < 0 {
		errs = append(errs, ValidationError{
			Field:   "limits.max_entry_count",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Limits.MaxEntryCount),
		})
	}

	if cfg.Limits.MaxEntrySize < 0 {
		errs = append(errs, ValidationError{
			Field:   "limits.max_entry_size",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Limits.MaxEntrySize),
		})
	}

	if cfg.Limits.MaxCompressionRatio < 0 {
		errs = append(errs, ValidationError{
			Field:   "limits.max_compression_ratio",
			Message: fmt.Sprintf("must be non-negative, got %g", cfg.Limits.MaxCompressionRatio),
		})
	}

	// Validate operation registry config
	if cfg.Operations.RetentionMinutes < 1 {
		errs = append(errs, ValidationError{
			Field:   "operations.retention_minutes",
			Message: fmt.Sprintf("must be at least 1 minute, got %d", cfg.Operations.RetentionMinutes),
		})
	}

	if cfg.Operations.SweepIntervalSeconds < 1 {
		errs = append(errs, ValidationError{
			Field:   "operations.sweep_interval_seconds",
			Message: fmt.Sprintf("must be at least 1 second, got %d", cfg.Operations.SweepIntervalSeconds),
		})
	}

	if cfg.Operations.MaxLogLines < 1 {
		errs = append(errs, ValidationError{
			Field:   "operations.max_log_lines",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Operations.MaxLogLines),
		})
	}

	// Validate server config
	if cfg.Server.HTTPPort < 1 || cfg.Server.HTTPPort > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.http_port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Server.HTTPPort),
		})
	}

	if cfg.Server.HTTPBind == "" {
		errs = append(errs, ValidationError{
			Field:   "server.http_bind",
			Message: "must not be empty",
		})
	}

	if cfg.Server.ShutdownTimeout < 1 {
		errs = append(errs, ValidationError{
			Field:   "server.shutdown_timeout",
			Message: fmt.Sprintf("must be at least 1 second, got %d", cfg.Server.ShutdownTimeout),
		})
	}

	if cfg.Server.Auth.Enabled {
		if cfg.Server.Auth.Username == "" {
			errs = append(errs, ValidationError{
				Field:   "server.auth.username",
				Message: "must not be empty when auth is enabled",
			})
		}
		if cfg.Server.Auth.ResolvePassword() == "" {
			errs = append(errs, ValidationError{
				Field:   "server.auth.password",
				Message: fmt.Sprintf("must be set directly or via %s when auth is enabled", cfg.Server.Auth.PasswordEnv),
			})
		}
	}

	if cfg.Server.RateLimit.Enabled {
		if cfg.Server.RateLimit.RequestsPerMinute < 1 {
			errs = append(errs, ValidationError{
				Field:   "server.rate_limit.requests_per_minute",
				Message: fmt.Sprintf("must be at least 1, got %d", cfg.Server.RateLimit.RequestsPerMinute),
			})
		}
		if cfg.Server.RateLimit.Burst < 1 {
			errs = append(errs, ValidationError{
				Field:   "server.rate_limit.burst",
				Message: fmt.Sprintf("must be at least 1, got %d", cfg.Server.RateLimit.Burst),
			})
		}
	}

	// Validate watch config
	if cfg.Watch.Enabled {
		if cfg.Extract.RootDir == "" {
			errs = append(errs, ValidationError{
				Field:   "extract.root_dir",
				Message: "must be set when watch mode is enabled",
			})
		}
		if cfg.Watch.DebounceSeconds < 1 {
			errs = append(errs, ValidationError{
				Field:   "watch.debounce_seconds",
				Message: fmt.Sprintf("must be at least 1 second, got %d", cfg.Watch.DebounceSeconds),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve ValidationError
	var ves ValidationErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}
