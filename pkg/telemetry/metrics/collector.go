package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/reportkeeper/pkg/config"
)

// Collector owns the Prometheus registry of the service and the HTTP and
// report lifecycle metrics recorded by the API server. Other components
// register their own metrics through Registerer.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requests  *RequestMetrics
	lifecycle *LifecycleMetrics
}

// NewCollector creates a collector on a fresh registry. Go runtime and
// process metrics are registered alongside the service metrics.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics)
//	reclaimMetrics := reclamation.NewMetrics(collector.Registerer())
//	mux.Handle("GET /metrics", collector.Handler())
func NewCollector(cfg *config.MetricsConfig) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true}
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		config:    cfg,
		registry:  registry,
		requests:  NewRequestMetrics(cfg.Namespace, registry),
		lifecycle: NewLifecycleMetrics(cfg.Namespace, registry),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Registerer returns the registerer other components add their metrics to.
func (c *Collector) Registerer() prometheus.Registerer {
	return c.registry
}

// Enabled reports whether metrics are exposed.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// Instrument wraps h so its requests are counted and timed under route.
func (c *Collector) Instrument(route string, h http.Handler) http.Handler {
	return c.requests.Instrument(route, h)
}

// Lifecycle returns the report lifecycle metrics.
func (c *Collector) Lifecycle() *LifecycleMetrics {
	return c.lifecycle
}
