package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsFinalizedTotal,
		paymentsRaceLostTotal,
		webhookEventsTotal,
	)
}

var (
	paymentsFinalizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_finalized_total",
			Help: "Terminal ledger transitions by target status and writer source.",
		},
		[]string{"status", "source"},
	)

	paymentsRaceLostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_race_lost_total",
			Help: "Conditional ledger updates that found the row already finalized.",
		},
		[]string{"source"},
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Gateway webhook deliveries by event and outcome.",
		},
		[]string{"event", "outcome"},
	)
)

func IncPaymentFinalized(status, source string) {
	paymentsFinalizedTotal.WithLabelValues(norm(status), norm(source)).Inc()
}

func IncPaymentRaceLost(source string) {
	paymentsRaceLostTotal.WithLabelValues(norm(source)).Inc()
}

func IncWebhookEvent(event, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(event), norm(outcome)).Inc()
}
