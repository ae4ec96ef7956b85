package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateLifecycle(&cfg.Lifecycle)...)
	errs = append(errs, validateReclamation(&cfg.Reclamation)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateSecurity(&cfg.Security)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates HTTP server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must be non-negative",
		})
	}

	if cfg.CORS.Enabled && len(cfg.CORS.AllowedOrigins) == 0 {
		errs = append(errs, FieldError{
			Field:   "server.cors.allowed_origins",
			Message: "at least one allowed origin is required when CORS is enabled",
		})
	}
	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "server.cors.max_age",
			Message: "max age must be non-negative",
		})
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, FieldError{
				Field:   "server.rate_limit.requests_per_second",
				Message: "requests per second must be positive",
			})
		}
		if cfg.RateLimit.Burst < 1 {
			errs = append(errs, FieldError{
				Field:   "server.rate_limit.burst",
				Message: "burst must be at least 1",
			})
		}
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.cert_file",
				Message: "cert file is required when TLS is enabled",
			})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.key_file",
				Message: "key file is required when TLS is enabled",
			})
		}
		if cfg.TLS.MinVersion != "1.2" && cfg.TLS.MinVersion != "1.3" {
			errs = append(errs, FieldError{
				Field:   "server.tls.min_version",
				Message: fmt.Sprintf("unsupported TLS version %q (must be 1.2 or 1.3)", cfg.TLS.MinVersion),
			})
		}
	}

	return errs
}

// validateStore validates report store configuration.
func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.path",
				Message: "SQLite path is required when backend is 'sqlite'",
			})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.max_open_conns",
				Message: "max open connections must be at least 1",
			})
		}
		if cfg.SQLite.MaxIdleConns < 0 || cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.max_idle_conns",
				Message: "max idle connections must be between 0 and max_open_conns",
			})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.busy_timeout",
				Message: "busy timeout must be non-negative",
			})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{
				Field:   "store.postgres.dsn",
				Message: "DSN is required when backend is 'postgres'",
			})
		}
		if cfg.Postgres.MaxOpenConns < 1 {
			errs = append(errs, FieldError{
				Field:   "store.postgres.max_open_conns",
				Message: "max open connections must be at least 1",
			})
		}
		if cfg.Postgres.MaxIdleConns < 0 || cfg.Postgres.MaxIdleConns > cfg.Postgres.MaxOpenConns {
			errs = append(errs, FieldError{
				Field:   "store.postgres.max_idle_conns",
				Message: "max idle connections must be between 0 and max_open_conns",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'sqlite', 'postgres' or 'memory'", cfg.Backend),
		})
	}

	return errs
}

// validateLifecycle validates report lifecycle rules.
func validateLifecycle(cfg *LifecycleConfig) []FieldError {
	var errs []FieldError

	if cfg.RecoveryWindow <= 0 {
		errs = append(errs, FieldError{
			Field:   "lifecycle.recovery_window",
			Message: "recovery window must be positive",
		})
	}
	if cfg.StaleAfter <= 0 {
		errs = append(errs, FieldError{
			Field:   "lifecycle.stale_after",
			Message: "stale threshold must be positive",
		})
	}

	for stage, fields := range cfg.StageRequirements {
		field := "lifecycle.stage_requirements." + stage
		if stage != "stage1" && stage != "stage2" {
			errs = append(errs, FieldError{
				Field:   field,
				Message: "requirements can only gate 'stage1' or 'stage2'",
			})
			continue
		}
		for _, name := range fields {
			if strings.TrimSpace(name) == "" {
				errs = append(errs, FieldError{
					Field:   field,
					Message: "field names must not be empty",
				})
				break
			}
		}
	}

	return errs
}

// validateReclamation validates reclamation job configuration.
func validateReclamation(cfg *ReclamationConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled {
		if cfg.Schedule == "" {
			errs = append(errs, FieldError{
				Field:   "reclamation.schedule",
				Message: "schedule is required when reclamation is enabled",
			})
		} else if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "reclamation.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Schedule, err),
			})
		}
	}

	if cfg.BatchSize < 1 {
		errs = append(errs, FieldError{
			Field:   "reclamation.batch_size",
			Message: "batch size must be at least 1",
		})
	}
	if cfg.MaxPerRun < 1 {
		errs = append(errs, FieldError{
			Field:   "reclamation.max_per_run",
			Message: "max per run must be at least 1",
		})
	}
	switch cfg.ArchiveBackend {
	case "file":
		if cfg.ArchiveBeforeDelete && cfg.ArchivePath == "" {
			errs = append(errs, FieldError{
				Field:   "reclamation.archive_path",
				Message: "archive path is required when archive_before_delete is enabled",
			})
		}
	case "s3":
		if cfg.ArchiveBeforeDelete && cfg.ArchiveS3.Bucket == "" {
			errs = append(errs, FieldError{
				Field:   "reclamation.archive_s3.bucket",
				Message: "bucket is required when archive_backend is 's3'",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "reclamation.archive_backend",
			Message: fmt.Sprintf("invalid archive backend %q: must be 'file' or 's3'", cfg.ArchiveBackend),
		})
	}

	switch cfg.Lock.Backend {
	case "none":
	case "redis":
		if cfg.Lock.Redis.Address == "" {
			errs = append(errs, FieldError{
				Field:   "reclamation.lock.redis.address",
				Message: "address is required when lock backend is 'redis'",
			})
		}
		if cfg.Lock.TTL < time.Second {
			errs = append(errs, FieldError{
				Field:   "reclamation.lock.ttl",
				Message: "lock TTL must be at least 1s",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "reclamation.lock.backend",
			Message: fmt.Sprintf("invalid lock backend %q: must be 'none' or 'redis'", cfg.Lock.Backend),
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/'",
		})
	}

	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}

	if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.liveness_path",
			Message: "liveness path must start with '/'",
		})
	}
	if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.readiness_path",
			Message: "readiness path must start with '/'",
		})
	}
	if cfg.Health.CheckTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout must be positive",
		})
	}

	return errs
}

var validRoles = map[string]bool{
	"superadmin":     true,
	"operator":       true,
	"branch_manager": true,
	"inspector":      true,
}

// validateSecurity validates API key configuration.
func validateSecurity(cfg *SecurityConfig) []FieldError {
	var errs []FieldError

	for i, src := range cfg.Authentication.Sources {
		if src.Type != "header" && src.Type != "query" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("security.authentication.sources[%d].type", i),
				Message: fmt.Sprintf("invalid source type %q: must be 'header' or 'query'", src.Type),
			})
		}
		if src.Name == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("security.authentication.sources[%d].name", i),
				Message: "source name is required",
			})
		}
	}

	seen := make(map[string]bool, len(cfg.Authentication.Keys))
	for i, key := range cfg.Authentication.Keys {
		prefix := fmt.Sprintf("security.authentication.keys[%d]", i)
		if key.Key == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".key",
				Message: "key is required",
			})
		} else if seen[key.Key] {
			errs = append(errs, FieldError{
				Field:   prefix + ".key",
				Message: "duplicate key",
			})
		}
		seen[key.Key] = true

		if key.UserID == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".user_id",
				Message: "user id is required",
			})
		}
		if !validRoles[key.Role] {
			errs = append(errs, FieldError{
				Field:   prefix + ".role",
				Message: fmt.Sprintf("invalid role %q: must be 'superadmin', 'operator', 'branch_manager', or 'inspector'", key.Role),
			})
		}
		if key.Role == "branch_manager" && key.BranchID == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".branch_id",
				Message: "branch id is required for branch managers",
			})
		}
	}

	return errs
}
