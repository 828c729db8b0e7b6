package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionDecisionsTotal,
		admissionConflictsTotal,
		subscriptionsExpiredTotal,
	)
}

var (
	subscriptionDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_decisions_total",
			Help: "Admin subscription decisions by outcome.",
		},
		[]string{"decision"}, // approved | rejected
	)

	admissionConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "admission_conflicts_total",
			Help: "Order creations blocked by an existing active/pending subscription.",
		},
	)

	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Active subscriptions moved to expired by the expiry worker.",
		},
	)
)

func IncSubscriptionDecision(decision string) {
	subscriptionDecisionsTotal.WithLabelValues(norm(decision)).Inc()
}

func IncAdmissionConflict() {
	admissionConflictsTotal.Inc()
}

func IncSubscriptionsExpired(n int) {
	subscriptionsExpiredTotal.Add(float64(n))
}
