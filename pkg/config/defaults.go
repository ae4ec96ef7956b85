package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultMaxBodyBytes    = int64(1048576)
	DefaultTLSMinVersion   = "1.3"
	DefaultTLSReload       = 5 * time.Minute
	DefaultCORSMaxAge      = 3600
	DefaultRateLimitRPS    = 10.0
	DefaultRateLimitBurst  = 20

	// Security defaults
	DefaultSecretEnvPrefix = "REPORTKEEPER_SECRET_"

	// Store defaults
	DefaultStoreBackend       = "sqlite"
	DefaultSQLitePath         = "data/reports.db"
	DefaultSQLiteDriver       = "sqlite"
	DefaultSQLiteMaxOpenConns = 4
	DefaultSQLiteMaxIdleConns = 2
	DefaultSQLiteWALMode      = true
	DefaultSQLiteBusyTimeout  = 5 * time.Second

	DefaultPostgresMaxOpenConns    = 10
	DefaultPostgresMaxIdleConns    = 5
	DefaultPostgresConnMaxLifetime = 30 * time.Minute

	// Lifecycle defaults
	DefaultRecoveryWindow = 48 * time.Hour
	DefaultStaleAfter     = 30 * 24 * time.Hour

	// Reclamation defaults
	DefaultReclamationEnabled     = true
	DefaultReclamationSchedule    = "0 3 * * *"
	DefaultReclamationBatchSize   = 100
	DefaultReclamationMaxPerRun   = 1000
	DefaultReclamationArchive     = false
	DefaultReclamationArchivePath = "data/archives/"
	DefaultArchiveBackend         = "file"
	DefaultArchiveS3Region        = "us-east-1"
	DefaultLockBackend            = "none"
	DefaultLockKey                = "reportkeeper:reclamation:run"
	DefaultLockTTL                = 15 * time.Minute
	DefaultRedisAddress           = "localhost:6379"

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultLogRedactPII     = true
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "reportkeeper"
	DefaultTracingSampler   = "ratio"
	DefaultTracingRatio     = 0.1
	DefaultTracingTimeout   = 10 * time.Second
	DefaultServiceName      = "reportkeeper"
	DefaultLivenessPath     = "/health"
	DefaultReadinessPath    = "/ready"
	DefaultCheckTimeout     = 5 * time.Second
)

// DefaultStageRequirements returns the fields gating each stage transition.
func DefaultStageRequirements() map[string][]string {
	return map[string][]string{
		"stage1": {"customer_name", "address", "roof_type"},
		"stage2": {"checklist", "issues"},
	}
}

// DefaultAPIKeySources returns the default API key extraction sources.
func DefaultAPIKeySources() []APIKeySource {
	return []APIKeySource{
		{Type: "header", Name: "Authorization", Scheme: "Bearer"},
		{Type: "header", Name: "X-API-Key"},
	}
}

// Default returns a configuration with every field at its default value.
// Boolean fields that default to true are only set here, so LoadConfig
// unmarshals the file on top of Default to keep an explicit "false".
func Default() *Config {
	cfg := &Config{}
	cfg.Store.SQLite.WALMode = DefaultSQLiteWALMode
	cfg.Reclamation.Enabled = DefaultReclamationEnabled
	cfg.Reclamation.ArchiveBeforeDelete = DefaultReclamationArchive
	cfg.Telemetry.Logging.RedactPII = DefaultLogRedactPII
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.SampleRatio = DefaultTracingRatio
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for all zero-valued fields in the
// configuration. It modifies the configuration in place.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Server.TLS.ReloadInterval == 0 {
		cfg.Server.TLS.ReloadInterval = DefaultTLSReload
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = []string{"Authorization", "Content-Type", "X-API-Key", "X-Request-ID"}
	}
	if len(cfg.Server.CORS.ExposedHeaders) == 0 {
		cfg.Server.CORS.ExposedHeaders = []string{"X-Request-ID"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}
	if cfg.Server.RateLimit.RequestsPerSecond == 0 {
		cfg.Server.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = DefaultRateLimitBurst
	}

	// Store defaults
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Store.SQLite.Driver == "" {
		cfg.Store.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Store.SQLite.MaxOpenConns == 0 {
		cfg.Store.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Store.SQLite.MaxIdleConns == 0 {
		cfg.Store.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.Store.SQLite.BusyTimeout == 0 {
		cfg.Store.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Store.Postgres.MaxOpenConns == 0 {
		cfg.Store.Postgres.MaxOpenConns = DefaultPostgresMaxOpenConns
	}
	if cfg.Store.Postgres.MaxIdleConns == 0 {
		cfg.Store.Postgres.MaxIdleConns = DefaultPostgresMaxIdleConns
	}
	if cfg.Store.Postgres.ConnMaxLifetime == 0 {
		cfg.Store.Postgres.ConnMaxLifetime = DefaultPostgresConnMaxLifetime
	}

	// Lifecycle defaults
	if cfg.Lifecycle.RecoveryWindow == 0 {
		cfg.Lifecycle.RecoveryWindow = DefaultRecoveryWindow
	}
	if cfg.Lifecycle.StaleAfter == 0 {
		cfg.Lifecycle.StaleAfter = DefaultStaleAfter
	}
	if cfg.Lifecycle.StageRequirements == nil {
		cfg.Lifecycle.StageRequirements = DefaultStageRequirements()
	}

	// Reclamation defaults
	if cfg.Reclamation.Schedule == "" {
		cfg.Reclamation.Schedule = DefaultReclamationSchedule
	}
	if cfg.Reclamation.BatchSize == 0 {
		cfg.Reclamation.BatchSize = DefaultReclamationBatchSize
	}
	if cfg.Reclamation.MaxPerRun == 0 {
		cfg.Reclamation.MaxPerRun = DefaultReclamationMaxPerRun
	}
	if cfg.Reclamation.ArchivePath == "" {
		cfg.Reclamation.ArchivePath = DefaultReclamationArchivePath
	}
	if cfg.Reclamation.ArchiveBackend == "" {
		cfg.Reclamation.ArchiveBackend = DefaultArchiveBackend
	}
	if cfg.Reclamation.ArchiveS3.Region == "" {
		cfg.Reclamation.ArchiveS3.Region = DefaultArchiveS3Region
	}
	if cfg.Reclamation.Lock.Backend == "" {
		cfg.Reclamation.Lock.Backend = DefaultLockBackend
	}
	if cfg.Reclamation.Lock.Key == "" {
		cfg.Reclamation.Lock.Key = DefaultLockKey
	}
	if cfg.Reclamation.Lock.TTL == 0 {
		cfg.Reclamation.Lock.TTL = DefaultLockTTL
	}
	if cfg.Reclamation.Lock.Redis.Address == "" {
		cfg.Reclamation.Lock.Redis.Address = DefaultRedisAddress
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultServiceName
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultCheckTimeout
	}

	// Security defaults
	if cfg.Security.Secrets.EnvPrefix == "" {
		cfg.Security.Secrets.EnvPrefix = DefaultSecretEnvPrefix
	}
	if len(cfg.Security.Authentication.Sources) == 0 {
		cfg.Security.Authentication.Sources = DefaultAPIKeySources()
	}
}
