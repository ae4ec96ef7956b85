package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "REPORTKEEPER_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML on top of the default configuration. It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Fields explicitly emptied in the file fall back to their defaults.
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention REPORTKEEPER_SECTION_FIELD (e.g., REPORTKEEPER_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envInt("SERVER_MAX_HEADER_BYTES", &cfg.Server.MaxHeaderBytes)
	envBool("SERVER_TLS_ENABLED", &cfg.Server.TLS.Enabled)
	envString("SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	envString("SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)
	envString("SECURITY_SECRETS_DIR", &cfg.Security.Secrets.Dir)

	// Store overrides
	envString("STORE_BACKEND", &cfg.Store.Backend)
	envString("STORE_SQLITE_PATH", &cfg.Store.SQLite.Path)
	envString("STORE_SQLITE_DRIVER", &cfg.Store.SQLite.Driver)
	envInt("STORE_SQLITE_MAX_OPEN_CONNS", &cfg.Store.SQLite.MaxOpenConns)
	envInt("STORE_SQLITE_MAX_IDLE_CONNS", &cfg.Store.SQLite.MaxIdleConns)
	envBool("STORE_SQLITE_WAL_MODE", &cfg.Store.SQLite.WALMode)
	envDuration("STORE_SQLITE_BUSY_TIMEOUT", &cfg.Store.SQLite.BusyTimeout)
	envString("STORE_POSTGRES_DSN", &cfg.Store.Postgres.DSN)
	envInt("STORE_POSTGRES_MAX_OPEN_CONNS", &cfg.Store.Postgres.MaxOpenConns)
	envInt("STORE_POSTGRES_MAX_IDLE_CONNS", &cfg.Store.Postgres.MaxIdleConns)
	envDuration("STORE_POSTGRES_CONN_MAX_LIFETIME", &cfg.Store.Postgres.ConnMaxLifetime)

	// Lifecycle overrides
	envDuration("LIFECYCLE_RECOVERY_WINDOW", &cfg.Lifecycle.RecoveryWindow)
	envDuration("LIFECYCLE_STALE_AFTER", &cfg.Lifecycle.StaleAfter)

	// Reclamation overrides
	envBool("RECLAMATION_ENABLED", &cfg.Reclamation.Enabled)
	envString("RECLAMATION_SCHEDULE", &cfg.Reclamation.Schedule)
	envInt("RECLAMATION_BATCH_SIZE", &cfg.Reclamation.BatchSize)
	envInt("RECLAMATION_MAX_PER_RUN", &cfg.Reclamation.MaxPerRun)
	envBool("RECLAMATION_ARCHIVE_BEFORE_DELETE", &cfg.Reclamation.ArchiveBeforeDelete)
	envString("RECLAMATION_ARCHIVE_PATH", &cfg.Reclamation.ArchivePath)
	envString("RECLAMATION_ARCHIVE_BACKEND", &cfg.Reclamation.ArchiveBackend)
	envString("RECLAMATION_ARCHIVE_S3_BUCKET", &cfg.Reclamation.ArchiveS3.Bucket)
	envString("RECLAMATION_ARCHIVE_S3_ENDPOINT", &cfg.Reclamation.ArchiveS3.Endpoint)
	envString("RECLAMATION_LOCK_BACKEND", &cfg.Reclamation.Lock.Backend)
	envString("RECLAMATION_LOCK_REDIS_ADDRESS", &cfg.Reclamation.Lock.Redis.Address)
	envString("RECLAMATION_LOCK_REDIS_PASSWORD", &cfg.Reclamation.Lock.Redis.Password)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	envBool("TELEMETRY_LOGGING_REDACT_PII", &cfg.Telemetry.Logging.RedactPII)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}
