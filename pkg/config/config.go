package config

import "time"

// Config is the root configuration structure for Report Keeper.
// It contains the HTTP server, the report store, the report lifecycle
// rules, the reclamation job, telemetry and security settings.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and connection limits.
	Server ServerConfig `yaml:"server"`

	// Store selects and configures the report store backend.
	Store StoreConfig `yaml:"store"`

	// Lifecycle contains the report lifecycle rules: the recovery window,
	// the staleness threshold and the fields gating each stage transition.
	Lifecycle LifecycleConfig `yaml:"lifecycle"`

	// Reclamation contains configuration for the scheduled job that
	// soft-deletes stale drafts and hard-deletes expired deletions.
	Reclamation ReclamationConfig `yaml:"reclamation"`

	// Telemetry contains configuration for logging, metrics and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Security contains API key authentication settings.
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A manual reclamation run must finish inside it.
	// Default: 5m
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits the size of JSON request bodies.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// TLS enables HTTPS on the API listener.
	TLS TLSConfig `yaml:"tls"`

	// CORS contains Cross-Origin Resource Sharing configuration for the
	// browser-based authoring app.
	CORS CORSConfig `yaml:"cors"`

	// RateLimit limits requests per API key.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are sent.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins. Use ["*"] to allow all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	// Default: ["Authorization", "Content-Type", "X-API-Key", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers exposed to the browser.
	// Default: ["X-Request-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is how long, in seconds, preflight responses may be cached.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials are allowed.
	AllowCredentials bool `yaml:"allow_credentials"`
}

// RateLimitConfig limits requests per authenticated API key with a token
// bucket.
type RateLimitConfig struct {
	// Enabled turns rate limiting on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained rate allowed per key.
	// Default: 10
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the bucket capacity.
	// Default: 20
	Burst int `yaml:"burst"`
}

// TLSConfig contains HTTPS settings for the API server.
type TLSConfig struct {
	// Enabled indicates whether TLS should be used.
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM-encoded certificate file.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded private key file.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version to accept ("1.2" or "1.3").
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// CipherSuites restricts the TLS 1.2 cipher suites. Empty keeps Go's
	// defaults.
	CipherSuites []string `yaml:"cipher_suites"`

	// ReloadInterval is how often the certificate files are checked for
	// changes.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// StoreConfig contains report store configuration.
type StoreConfig struct {
	// Backend is the storage backend.
	// Options: "sqlite", "postgres", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Postgres contains PostgreSQL-specific configuration.
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig contains SQLite storage configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/reports.db"
	Path string `yaml:"path"`

	// Driver is the database/sql driver name.
	// Options: "sqlite3" (mattn/go-sqlite3, cgo), "sqlite" (modernc.org/sqlite)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 2
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long a connection waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PostgresConfig contains PostgreSQL storage configuration.
type PostgresConfig struct {
	// DSN is the connection string. It may reference a secret, e.g.
	// "${secret:postgres-dsn}".
	DSN string `yaml:"dsn"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime recycles connections older than this.
	// Default: 30m
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// LifecycleConfig contains the report lifecycle rules.
type LifecycleConfig struct {
	// RecoveryWindow is how long a deleted report stays recoverable before
	// reclamation may hard-delete it.
	// Default: 48h
	RecoveryWindow time.Duration `yaml:"recovery_window"`

	// StaleAfter is how long an unfinished draft may go unedited before
	// reclamation soft-deletes it.
	// Default: 720h (30 days)
	StaleAfter time.Duration `yaml:"stale_after"`

	// StageRequirements lists, per stage, the content fields that must be
	// present before a report may leave that stage. Keys are stage names
	// ("stage1", "stage2").
	StageRequirements map[string][]string `yaml:"stage_requirements"`
}

// ReclamationConfig contains configuration for the reclamation job.
type ReclamationConfig struct {
	// Enabled controls whether the scheduled job runs. Manual runs are
	// always available.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression for scheduled runs.
	// Default: "0 3 * * *" (daily at 3 AM)
	Schedule string `yaml:"schedule"`

	// BatchSize is the number of reports read and written per batch.
	// Default: 100
	BatchSize int `yaml:"batch_size"`

	// MaxPerRun caps the number of reports examined in one run.
	// Default: 1000
	MaxPerRun int `yaml:"max_per_run"`

	// ArchiveBeforeDelete writes reports to a JSONL archive before they are
	// hard-deleted.
	// Default: false
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the directory for archive files.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`

	// ArchiveBackend selects where archives go.
	// Options: "file", "s3"
	// Default: "file"
	ArchiveBackend string `yaml:"archive_backend"`

	// ArchiveS3 configures the S3 archive backend.
	ArchiveS3 ArchiveS3Config `yaml:"archive_s3"`

	// Lock serializes runs across instances sharing one store.
	Lock LockConfig `yaml:"lock"`
}

// ArchiveS3Config contains S3 archive configuration.
type ArchiveS3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	// Region defaults to "us-east-1".
	Region string `yaml:"region"`
	// Endpoint overrides the AWS endpoint, e.g. for MinIO.
	Endpoint string `yaml:"endpoint"`
	// AccessKeyID and SecretAccessKey may reference secrets. When empty the
	// default AWS credential chain is used.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// LockConfig contains the reclamation run lock configuration.
type LockConfig struct {
	// Backend is the lock backend.
	// Options: "none", "redis"
	// Default: "none"
	Backend string `yaml:"backend"`

	// Key is the lock key.
	// Default: "reportkeeper:reclamation:run"
	Key string `yaml:"key"`

	// TTL bounds how long a crashed holder blocks other instances.
	// Default: 15m
	TTL time.Duration `yaml:"ttl"`

	// Redis contains the Redis connection settings.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	// Address is host:port.
	// Default: "localhost:6379"
	Address string `yaml:"address"`
	// Password may reference a secret.
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII enables redaction of API keys, emails and phone numbers in
	// log messages and string attributes.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains custom PII redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom PII redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether the Prometheus endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "reportkeeper"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address (host:port).
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "reportkeeper"
	ServiceName string `yaml:"service_name"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	// Authentication contains API key authentication configuration.
	Authentication AuthenticationConfig `yaml:"authentication"`

	// Secrets configures where ${secret:name} references in API keys are
	// resolved from.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig configures secret reference resolution. Providers are tried
// in order: the secrets directory first, then the environment.
type SecretsConfig struct {
	// EnvPrefix is prepended to the upper-cased secret name to form the
	// environment variable name.
	// Default: "REPORTKEEPER_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir is a directory holding one file per secret (Kubernetes style).
	// Empty disables the file provider.
	Dir string `yaml:"dir,omitempty"`
}

// AuthenticationConfig contains API key authentication configuration.
type AuthenticationConfig struct {
	// Sources defines where to extract API keys from (headers, query params).
	// Default: "Authorization: Bearer <key>" and "X-API-Key"
	Sources []APIKeySource `yaml:"sources"`

	// Keys is the list of valid API keys.
	Keys []APIKeyConfig `yaml:"keys"`
}

// APIKeySource defines where to extract API keys from in HTTP requests.
type APIKeySource struct {
	// Type is the source type.
	// Options: "header", "query"
	Type string `yaml:"type"`

	// Name is the header name or query parameter name.
	Name string `yaml:"name"`

	// Scheme is the authentication scheme for header-based extraction.
	// Example: "Bearer" (for "Authorization: Bearer <token>")
	Scheme string `yaml:"scheme,omitempty"`
}

// APIKeyConfig contains configuration for a single API key.
type APIKeyConfig struct {
	// Key is the API key value or a ${secret:name} reference.
	Key string `yaml:"key"`

	// UserID is the user identifier associated with this key.
	UserID string `yaml:"user_id"`

	// BranchID is the branch the user belongs to.
	BranchID string `yaml:"branch_id,omitempty"`

	// Role is one of "superadmin", "operator", "branch_manager", "inspector".
	Role string `yaml:"role"`

	// Enabled controls whether this key is accepted.
	// Default: true
	Enabled *bool `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the key is enabled. Keys are enabled unless
// explicitly disabled.
func (k APIKeyConfig) IsEnabled() bool {
	return k.Enabled == nil || *k.Enabled
}
