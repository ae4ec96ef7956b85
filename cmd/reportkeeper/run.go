package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/reportkeeper/pkg/cli"
	"mercator-hq/reportkeeper/pkg/config"
	"mercator-hq/reportkeeper/pkg/report/reclamation"
	"mercator-hq/reportkeeper/pkg/security/auth"
	securityTLS "mercator-hq/reportkeeper/pkg/security/tls"
	"mercator-hq/reportkeeper/pkg/server"
	"mercator-hq/reportkeeper/pkg/telemetry/health"
	"mercator-hq/reportkeeper/pkg/telemetry/metrics"
	"mercator-hq/reportkeeper/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	noWatch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Report Keeper server",
	Long: `Start the Report Keeper API server and the reclamation scheduler.

The configuration file is watched for changes; API keys are reloaded without a
restart. Sending SIGHUP forces a reload.

Examples:
  # Start with default config
  reportkeeper run

  # Start with custom config
  reportkeeper run --config /etc/reportkeeper/config.yaml

  # Override listen address
  reportkeeper run --listen 0.0.0.0:8080

  # Validate config, open the store and resolve secrets without serving
  reportkeeper run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "do not watch the config file for changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := setupLogging(cfg.Telemetry.Logging); err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics)
	a, err := newApp(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer a.Close()

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Report Keeper v%s\n", Version)
	fmt.Fprintf(out, "✓ Configuration loaded from %s\n", cfgFile)
	fmt.Fprintf(out, "✓ Report store ready (%s)\n", cfg.Store.Backend)

	tracer, err := tracing.New(ctx, &cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()
	if tracer.Enabled() {
		fmt.Fprintf(out, "✓ Tracing to %s\n", cfg.Telemetry.Tracing.Endpoint)
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("store", health.StoreCheck(a.store))
	if a.redis != nil {
		checker.RegisterCheck("reclamation_lock", health.DependencyCheck("redis", health.PingFunc(func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})))
		fmt.Fprintf(out, "✓ Reclamation lock on Redis %s\n", cfg.Reclamation.Lock.Redis.Address)
	}
	checker.RegisterCheck("last_reclamation", health.LastRunCheck(func() (time.Time, bool) {
		s := a.reclaimer.LastSummary()
		if s == nil {
			return time.Time{}, false
		}
		return s.StartedAt, s.Error != ""
	}))

	if cfg.Reclamation.Enabled {
		scheduler := reclamation.NewScheduler(a.reclaimer, cfg.Reclamation.Schedule)
		if err := scheduler.Start(ctx); err != nil {
			return cli.NewCommandError("run", err)
		}
		defer scheduler.Stop()
		checker.RegisterCheck("reclamation_scheduler", health.SchedulerCheck(scheduler))

		if next := scheduler.NextRun(); next != nil {
			fmt.Fprintf(out, "✓ Reclamation scheduled (%s, next run %s)\n",
				cfg.Reclamation.Schedule, next.Format(time.RFC3339))
		}
	}

	tlsConfig, err := setupTLS(ctx, cfg.Server.TLS, checker)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintf(out, "✓ Readiness checks: %s\n", strings.Join(checker.ListChecks(), ", "))

	authorizer := auth.NewRoleAuthorizer()
	srv := server.NewServer(&cfg.Server, server.Deps{
		Store:      a.store,
		Machine:    a.machine,
		Recovery:   a.recovery,
		Trigger:    reclamation.NewManualTrigger(a.reclaimer, authorizer),
		Authorizer: authorizer,
		Keys:       a.keys,
		Sources:    sourcesFromConfig(cfg.Security.Authentication.Sources),
		Health:     checker,
		Telemetry:  cfg.Telemetry,
		Metrics:    collector,
		Tracer:     tracer,
		TLSConfig:  tlsConfig,
		Version:    server.VersionInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
		Clock:      a.clock,
	})

	if !runFlags.noWatch {
		startConfigReload(ctx, a)
	}

	scheme := "http"
	if tlsConfig != nil {
		scheme = "https"
	}
	fmt.Fprintf(out, "✓ Server listening on %s://%s\n", scheme, cfg.Server.ListenAddress)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// setupTLS starts the certificate reloader and registers its expiry check.
// It returns nil when TLS is disabled.
func setupTLS(ctx context.Context, cfg config.TLSConfig, checker *health.Checker) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	reloader := securityTLS.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval, nil)
	if err := reloader.Start(ctx); err != nil {
		return nil, err
	}
	tlsConfig, err := securityTLS.ServerConfig(cfg, reloader)
	if err != nil {
		return nil, err
	}
	checker.RegisterCheck("tls_certificate", securityTLS.ExpiryCheck(reloader))
	return tlsConfig, nil
}

// startConfigReload applies configuration changes from the file watcher and
// from SIGHUP.
func startConfigReload(ctx context.Context, a *app) {
	apply := func(cfg *config.Config) {
		if err := a.reloadKeys(ctx, cfg); err != nil {
			slog.Error("failed to apply reloaded configuration", "error", err)
		}
	}

	watcher, err := config.NewWatcher(cfgFile, 0)
	if err != nil {
		slog.Warn("config file watching disabled", "error", err)
	} else {
		go func() {
			if err := watcher.Watch(ctx, apply); err != nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = watcher.Stop()
		}()
	}

	hup := cli.WaitForReload()
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				cfg, err := config.ReloadConfig(cfgFile)
				if err != nil {
					slog.Error("config reload on SIGHUP failed", "error", err)
					continue
				}
				apply(cfg)
			}
		}
	}()
}
