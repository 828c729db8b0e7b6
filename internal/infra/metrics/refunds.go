package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		refundDecisionsTotal,
		refundDriftTotal,
	)
}

var (
	refundDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refund_decisions_total",
			Help: "Admin refund decisions by outcome.",
		},
		[]string{"decision"}, // approved | rejected
	)

	refundDriftTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refund_drift_total",
			Help: "Refunds issued at the gateway whose local commit failed; requires manual reconciliation.",
		},
	)
)

func IncRefundDecision(decision string) {
	refundDecisionsTotal.WithLabelValues(norm(decision)).Inc()
}

func IncRefundDrift() {
	refundDriftTotal.Inc()
}
