package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/reportkeeper/pkg/clock"
	"mercator-hq/reportkeeper/pkg/config"
	"mercator-hq/reportkeeper/pkg/limits/ratelimit"
	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/report/reclamation"
	"mercator-hq/reportkeeper/pkg/report/recovery"
	"mercator-hq/reportkeeper/pkg/report/stages"
	"mercator-hq/reportkeeper/pkg/security/auth"
	"mercator-hq/reportkeeper/pkg/telemetry/health"
	"mercator-hq/reportkeeper/pkg/telemetry/metrics"
	"mercator-hq/reportkeeper/pkg/telemetry/tracing"
)

// Authorizer decides whether a principal holds a capability.
type Authorizer interface {
	Allowed(p auth.Principal, c auth.Capability) bool
}

// Deps are the collaborators the API serves.
type Deps struct {
	Store      report.Store
	Machine    *stages.Machine
	Recovery   *recovery.Manager
	Trigger    *reclamation.ManualTrigger
	Authorizer Authorizer

	// Keys validates API keys; Sources says where requests carry them.
	Keys    auth.APIKeyStore
	Sources []auth.APIKeySource

	Health    *health.Checker
	Telemetry config.TelemetryConfig

	// Metrics and Tracer may be nil.
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer

	// TLSConfig, when set, makes Start serve HTTPS.
	TLSConfig *tls.Config

	Version VersionInfo
	Clock   clock.Clock
}

// VersionInfo is the build information served on /version.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Server is the Report Keeper HTTP API server.
type Server struct {
	config     *config.ServerConfig
	deps       Deps
	logger     *slog.Logger
	httpServer *http.Server

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// NewServer creates a new API server.
func NewServer(cfg *config.ServerConfig, deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Authorizer == nil {
		deps.Authorizer = auth.NewRoleAuthorizer()
	}
	if deps.Telemetry.Health.LivenessPath == "" {
		deps.Telemetry.Health.LivenessPath = config.DefaultLivenessPath
	}
	if deps.Telemetry.Health.ReadinessPath == "" {
		deps.Telemetry.Health.ReadinessPath = config.DefaultReadinessPath
	}
	if deps.Telemetry.Metrics.Path == "" {
		deps.Telemetry.Metrics.Path = config.DefaultMetricsPath
	}
	return &Server{
		config: cfg,
		deps:   deps,
		logger: slog.Default().With("component", "server"),
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails. Cancellation triggers a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	if s.deps.TLSConfig != nil {
		ln = tls.NewListener(ln, s.deps.TLSConfig)
	}

	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server",
			"address", ln.Addr().String(),
			"tls_enabled", s.deps.TLSConfig != nil,
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the HTTP handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	h := &handlers{
		deps:   s.deps,
		clock:  s.deps.Clock,
		server: s,
	}
	if s.deps.Metrics != nil {
		h.lifecycle = s.deps.Metrics.Lifecycle()
	}

	s.route(api, "POST /v1/reports", "create_report", h.createReport)
	s.route(api, "GET /v1/reports", "list_reports", h.listReports)
	s.route(api, "GET /v1/reports/{id}", "get_report", h.getReport)
	s.route(api, "DELETE /v1/reports/{id}", "delete_report", h.deleteReport)
	s.route(api, "POST /v1/reports/{id}/recover", "recover_report", h.recoverReport)
	s.route(api, "POST /v1/reports/{id}/advance", "advance_report", h.advanceReport)
	s.route(api, "POST /v1/admin/reclamation", "trigger_reclamation", h.triggerReclamation)
	s.route(api, "GET /v1/admin/reclamation", "last_reclamation", h.lastReclamation)

	var protected http.Handler = api
	protected = principalMiddleware(protected)
	if s.config.RateLimit.Enabled {
		limiter := ratelimit.NewKeyedLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst, s.deps.Clock)
		protected = RateLimitMiddleware(limiter, s.logger)(protected)
	}
	protected = auth.NewAPIKeyMiddleware(s.deps.Keys, s.deps.Sources).Handle(protected)

	mux := http.NewServeMux()
	mux.Handle("/v1/", protected)

	hc := s.deps.Telemetry.Health
	if s.deps.Health != nil {
		mux.Handle(hc.LivenessPath, s.deps.Health.LivenessHandler())
		mux.Handle(hc.ReadinessPath, s.deps.Health.ReadinessHandler())
	}
	mux.Handle("/version", health.VersionHandler(s.deps.Version.Version, s.deps.Version.Commit, s.deps.Version.BuildTime))
	if s.deps.Metrics != nil && s.deps.Metrics.Enabled() {
		mux.Handle(s.deps.Telemetry.Metrics.Path, s.deps.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = BodyLimitMiddleware(s.config.MaxBodyBytes)(handler)
	handler = CORSMiddleware(s.config.CORS)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	if s.deps.Tracer != nil {
		handler = tracing.Middleware(s.deps.Tracer)(handler)
	}
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(s.logger)(handler)

	return handler
}

// route registers fn under pattern, instrumented as name.
func (s *Server) route(mux *http.ServeMux, pattern, name string, fn http.HandlerFunc) {
	var h http.Handler = fn
	if s.deps.Tracer != nil {
		h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracing.NameRoute(r.Context(), pattern)
			fn(w, r)
		})
	}
	if s.deps.Metrics != nil {
		h = s.deps.Metrics.Instrument(name, h)
	}
	mux.Handle(pattern, h)
}
