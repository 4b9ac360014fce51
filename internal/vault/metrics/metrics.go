package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions          *prometheus.CounterVec
	AdvisoryWarnings   prometheus.Counter
	AdminMutations     *prometheus.CounterVec
	ModeChanges        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	StoreConflicts     prometheus.Counter
}

// New registers the vault metrics on reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shieldvault_decisions_total",
			Help: "Policy decisions by mode, outcome and error kind",
		}, []string{"mode", "outcome", "kind"}),
		AdvisoryWarnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "shieldvault_advisory_warnings_total",
			Help: "Balanced mode actions allowed against targets outside the allowlist",
		}),
		AdminMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shieldvault_admin_mutations_total",
			Help: "Admin-gated operations by operation and result",
		}, []string{"operation", "result"}),
		ModeChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shieldvault_mode_changes_total",
			Help: "Successful safety mode changes by new mode",
		}, []string{"mode"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shieldvault_evaluation_duration_seconds",
			Help:    "Time to resolve state and evaluate one action request",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		StoreConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "shieldvault_store_conflicts_total",
			Help: "Transactions aborted by a concurrent conflicting write",
		}),
	}
}

func (m *Metrics) RecordDecision(mode, outcome, kind string) {
	m.Decisions.WithLabelValues(mode, outcome, kind).Inc()
}

func (m *Metrics) IncrementAdvisoryWarnings() {
	m.AdvisoryWarnings.Inc()
}

func (m *Metrics) RecordAdminMutation(operation, result string) {
	m.AdminMutations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) RecordModeChange(mode string) {
	m.ModeChanges.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveEvaluation(start time.Time) {
	m.EvaluationDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementStoreConflicts() {
	m.StoreConflicts.Inc()
}
