package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookRejectedTotal,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Processor events by type and outcome (ok/failed/duplicate/ignored).",
		},
		[]string{"type", "outcome"},
	)

	webhookRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_rejected_total",
			Help: "Deliveries rejected before dispatch (bad_signature/malformed).",
		},
		[]string{"reason"},
	)
)

func IncWebhookEvent(eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

func IncWebhookRejected(reason string) {
	webhookRejectedTotal.WithLabelValues(reason).Inc()
}
