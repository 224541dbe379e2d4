package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		notificationsEmittedTotal,
		notificationsFailedTotal,
	)
}

var (
	notificationsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_emitted_total",
			Help: "Notifications appended to the message log by kind.",
		},
		[]string{"kind"},
	)

	notificationsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Best-effort notification inserts that failed and were dropped.",
		},
		[]string{"kind"},
	)
)

func IncNotificationEmitted(kind string) {
	notificationsEmittedTotal.WithLabelValues(kind).Inc()
}

func IncNotificationEmitFailed(kind string) {
	notificationsFailedTotal.WithLabelValues(kind).Inc()
}
