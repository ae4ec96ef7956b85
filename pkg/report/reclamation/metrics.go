package reclamation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for reclamation runs.
type Metrics struct {
	runs        *prometheus.CounterVec
	documents   *prometheus.CounterVec
	errors      prometheus.Counter
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
}

// NewMetrics registers reclamation metrics with reg. A nil reg uses the
// default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportkeeper_reclamation_runs_total",
				Help: "Total number of reclamation runs",
			},
			[]string{"trigger", "result"},
		),

		documents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportkeeper_reclamation_documents_total",
				Help: "Total number of reports processed by reclamation, by action",
			},
			[]string{"action"},
		),

		errors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reportkeeper_reclamation_document_errors_total",
				Help: "Total number of per-report write failures during reclamation",
			},
		),

		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reportkeeper_reclamation_run_duration_seconds",
				Help:    "Duration of reclamation runs",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
		),

		lastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reportkeeper_reclamation_last_success_timestamp_seconds",
				Help: "Unix time of the last reclamation run that completed without a fatal error",
			},
		),
	}
}

// observe records a finished run. A nil receiver is a no-op.
func (m *Metrics) observe(s *Summary, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "failure"
	}
	m.runs.WithLabelValues(string(s.Trigger), result).Inc()
	m.documents.WithLabelValues("soft_delete").Add(float64(s.SoftDeleted))
	m.documents.WithLabelValues("hard_delete").Add(float64(s.HardDeleted))
	m.documents.WithLabelValues("skipped").Add(float64(s.Skipped))
	m.errors.Add(float64(s.Errors))
	m.duration.Observe(elapsed.Seconds())
	if err == nil {
		m.lastSuccess.Set(float64(time.Now().Unix()))
	}
}
