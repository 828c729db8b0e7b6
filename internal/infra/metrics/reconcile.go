package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconcileResultsTotal,
		reconcileSweepSeconds,
	)
}

var (
	reconcileResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_results_total",
			Help: "Per-payment sweep outcomes.",
		},
		[]string{"action"}, // unchanged | marked_success | marked_failed | skipped
	)

	reconcileSweepSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_sweep_seconds",
			Help:    "Duration of a full reconciliation sweep.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

func IncReconcileResult(action string) {
	reconcileResultsTotal.WithLabelValues(norm(action)).Inc()
}

func ObserveReconcileSweep(seconds float64) {
	reconcileSweepSeconds.Observe(seconds)
}
