package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"mercator-hq/reportkeeper/pkg/cli"
	"mercator-hq/reportkeeper/pkg/clock"
	"mercator-hq/reportkeeper/pkg/config"
	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/report/expiration"
	"mercator-hq/reportkeeper/pkg/report/reclamation"
	"mercator-hq/reportkeeper/pkg/report/recovery"
	"mercator-hq/reportkeeper/pkg/report/stages"
	"mercator-hq/reportkeeper/pkg/report/storage"
	"mercator-hq/reportkeeper/pkg/security/auth"
	"mercator-hq/reportkeeper/pkg/security/secrets"
	"mercator-hq/reportkeeper/pkg/telemetry/logging"
	"mercator-hq/reportkeeper/pkg/telemetry/metrics"
)

// app holds the lifecycle components built from one configuration.
type app struct {
	cfg       *config.Config
	clock     clock.Clock
	store     report.Store
	machine   *stages.Machine
	recovery  *recovery.Manager
	reclaimer *reclamation.Reclaimer
	resolver  *secrets.Resolver
	keys      *auth.APIKeyValidator

	// redis is set when the reclamation lock uses Redis.
	redis *redis.Client
}

// loadConfig loads the configuration file named by --config into the
// global configuration.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError(cfgFile, err.Error())
	}
	return config.MustGetConfig(), nil
}

// setupLogging installs the configured logger as the default. Logs go to
// stderr so command output on stdout stays machine readable.
func setupLogging(cfg config.LoggingConfig) error {
	lc := logging.FromConfig(cfg)
	if verbose {
		lc.Level = "debug"
	}
	lc.Writer = os.Stderr

	logger, err := logging.New(lc)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return nil
}

// newApp opens the store and builds the lifecycle components. collector
// may be nil, in which case reclamation metrics are not recorded.
func newApp(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (*app, error) {
	reqs, err := requirementsFromConfig(cfg.Lifecycle.StageRequirements)
	if err != nil {
		return nil, cli.NewConfigError("lifecycle.stage_requirements", err.Error())
	}

	resolver, err := secrets.FromConfig(cfg.Security.Secrets)
	if err != nil {
		return nil, cli.NewConfigError("security.secrets", err.Error())
	}
	keys, err := apiKeysFromConfig(ctx, resolver, cfg.Security.Authentication.Keys)
	if err != nil {
		return nil, cli.NewConfigError("security.authentication.keys", err.Error())
	}

	store, err := storeFromConfig(ctx, resolver, cfg.Store)
	if err != nil {
		return nil, err
	}

	clk := clock.Real{}
	policy := expiration.Policy{
		RecoveryWindow: cfg.Lifecycle.RecoveryWindow,
		StaleAfter:     cfg.Lifecycle.StaleAfter,
	}
	manager := recovery.NewManager(store, clk, policy)

	var reclaimMetrics *reclamation.Metrics
	if collector != nil {
		reclaimMetrics = reclamation.NewMetrics(collector.Registerer())
	}

	archive, err := archiveFromConfig(ctx, resolver, cfg.Reclamation)
	if err != nil {
		store.Close()
		return nil, err
	}
	rdb, locker, err := lockFromConfig(ctx, resolver, cfg.Reclamation.Lock)
	if err != nil {
		store.Close()
		return nil, err
	}

	rcfg := &reclamation.Config{
		Schedule:            cfg.Reclamation.Schedule,
		BatchSize:           cfg.Reclamation.BatchSize,
		MaxPerRun:           cfg.Reclamation.MaxPerRun,
		ArchiveBeforeDelete: cfg.Reclamation.ArchiveBeforeDelete,
		ArchivePath:         cfg.Reclamation.ArchivePath,
		Archive:             archive,
	}
	if locker != nil {
		rcfg.Locker = locker
	}
	reclaimer := reclamation.NewReclaimer(store, manager, clk, rcfg, reclaimMetrics)

	return &app{
		cfg:       cfg,
		clock:     clk,
		store:     store,
		machine:   stages.NewMachine(store, clk, reqs),
		recovery:  manager,
		reclaimer: reclaimer,
		resolver:  resolver,
		keys:      auth.NewAPIKeyValidator(keys),
		redis:     rdb,
	}, nil
}

// Close releases the store and the Redis connection.
func (a *app) Close() error {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Warn("failed to close Redis client", "error", err)
		}
	}
	return a.store.Close()
}

// reloadKeys swaps the accepted API keys for those of cfg. On error the
// current keys stay in effect.
func (a *app) reloadKeys(ctx context.Context, cfg *config.Config) error {
	keys, err := apiKeysFromConfig(ctx, a.resolver, cfg.Security.Authentication.Keys)
	if err != nil {
		return err
	}
	a.keys.Replace(keys)
	slog.Info("API keys reloaded", "count", a.keys.Len())
	return nil
}

func storeFromConfig(ctx context.Context, resolver *secrets.Resolver, cfg config.StoreConfig) (report.Store, error) {
	switch cfg.Backend {
	case "memory":
		slog.Warn("using in-memory report store; reports are lost on exit")
		return storage.NewMemoryStore(), nil
	case "sqlite":
		store, err := storage.NewSQLiteStore(&storage.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			Driver:       cfg.SQLite.Driver,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store: %w", err)
		}
		return store, nil
	case "postgres":
		dsn, err := resolver.Expand(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, cli.NewConfigError("store.postgres.dsn", err.Error())
		}
		store, err := storage.NewPostgresStore(ctx, &storage.PostgresConfig{
			DSN:             dsn,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL store: %w", err)
		}
		return store, nil
	default:
		return nil, cli.NewConfigError("store.backend", fmt.Sprintf("unsupported backend %q", cfg.Backend))
	}
}

// archiveFromConfig returns the S3 archive when configured. A nil sink
// leaves the reclaimer on its file archive.
func archiveFromConfig(ctx context.Context, resolver *secrets.Resolver, cfg config.ReclamationConfig) (reclamation.ArchiveSink, error) {
	if !cfg.ArchiveBeforeDelete || cfg.ArchiveBackend != "s3" {
		return nil, nil
	}
	s3cfg := cfg.ArchiveS3
	accessKey, err := resolver.Expand(ctx, s3cfg.AccessKeyID)
	if err != nil {
		return nil, cli.NewConfigError("reclamation.archive_s3.access_key_id", err.Error())
	}
	secretKey, err := resolver.Expand(ctx, s3cfg.SecretAccessKey)
	if err != nil {
		return nil, cli.NewConfigError("reclamation.archive_s3.secret_access_key", err.Error())
	}
	archive, err := reclamation.NewS3Archiver(ctx, reclamation.S3Config{
		Bucket:          s3cfg.Bucket,
		Prefix:          s3cfg.Prefix,
		Region:          s3cfg.Region,
		Endpoint:        s3cfg.Endpoint,
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		UsePathStyle:    s3cfg.UsePathStyle,
	})
	if err != nil {
		return nil, cli.NewConfigError("reclamation.archive_s3", err.Error())
	}
	slog.Info("archiving reports to S3", "bucket", s3cfg.Bucket, "prefix", s3cfg.Prefix)
	return archive, nil
}

// lockFromConfig connects to Redis when the run lock is enabled. The
// connection is checked lazily by the health endpoint so a Redis outage
// delays reclamation instead of preventing startup.
func lockFromConfig(ctx context.Context, resolver *secrets.Resolver, cfg config.LockConfig) (*redis.Client, *reclamation.RedisLocker, error) {
	if cfg.Backend != "redis" {
		return nil, nil, nil
	}
	password, err := resolver.Expand(ctx, cfg.Redis.Password)
	if err != nil {
		return nil, nil, cli.NewConfigError("reclamation.lock.redis.password", err.Error())
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: password,
		DB:       cfg.Redis.DB,
	})
	return rdb, reclamation.NewRedisLocker(rdb, cfg.Key, cfg.TTL), nil
}

func requirementsFromConfig(in map[string][]string) (stages.Requirements, error) {
	if len(in) == 0 {
		return stages.DefaultRequirements(), nil
	}
	reqs := make(stages.Requirements, len(in))
	for name, fields := range in {
		stage, err := report.ParseStage(name)
		if err != nil {
			return nil, err
		}
		reqs[stage] = fields
	}
	return reqs, nil
}

// apiKeysFromConfig resolves ${secret:name} references and converts the
// configured keys.
func apiKeysFromConfig(ctx context.Context, resolver *secrets.Resolver, in []config.APIKeyConfig) ([]*auth.APIKeyInfo, error) {
	keys := make([]*auth.APIKeyInfo, 0, len(in))
	for _, k := range in {
		value, err := resolver.Expand(ctx, k.Key)
		if err != nil {
			return nil, fmt.Errorf("key for user %s: %w", k.UserID, err)
		}
		keys = append(keys, &auth.APIKeyInfo{
			Key:      value,
			UserID:   k.UserID,
			BranchID: k.BranchID,
			Role:     auth.Role(k.Role),
			Enabled:  k.IsEnabled(),
		})
	}
	return keys, nil
}

func sourcesFromConfig(in []config.APIKeySource) []auth.APIKeySource {
	out := make([]auth.APIKeySource, 0, len(in))
	for _, s := range in {
		out = append(out, auth.APIKeySource{Type: s.Type, Name: s.Name, Scheme: s.Scheme})
	}
	return out
}
