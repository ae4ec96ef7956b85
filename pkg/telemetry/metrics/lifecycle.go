package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Operation results used as label values.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// LifecycleMetrics counts user-driven report lifecycle operations. Reclamation
// records its own metrics.
//
// Metrics:
//   - <ns>_report_transitions_total: stage advances by target stage and result
//   - <ns>_report_operations_total: deletes and recoveries by operation and result
type LifecycleMetrics struct {
	transitions *prometheus.CounterVec
	operations  *prometheus.CounterVec
}

// NewLifecycleMetrics creates and registers lifecycle metrics.
func NewLifecycleMetrics(namespace string, registry prometheus.Registerer) *LifecycleMetrics {
	lm := &LifecycleMetrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_transitions_total",
				Help:      "Total number of stage transition attempts",
			},
			[]string{"to", "result"},
		),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_operations_total",
				Help:      "Total number of user delete and recover operations",
			},
			[]string{"operation", "result"},
		),
	}

	registry.MustRegister(lm.transitions, lm.operations)

	return lm
}

// RecordTransition records a stage advance attempt. A nil receiver is a no-op.
func (lm *LifecycleMetrics) RecordTransition(to, result string) {
	if lm == nil {
		return
	}
	lm.transitions.WithLabelValues(to, result).Inc()
}

// RecordOperation records a delete or recover attempt. A nil receiver is a no-op.
func (lm *LifecycleMetrics) RecordOperation(operation, result string) {
	if lm == nil {
		return
	}
	lm.operations.WithLabelValues(operation, result).Inc()
}
