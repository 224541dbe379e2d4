package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		refundRequestsTotal,
		refundDecisionsTotal,
		refundSplitStateTotal,
	)
}

var (
	refundRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refund_requests_total",
			Help: "Refund requests created by users.",
		},
	)

	refundDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refund_decisions_total",
			Help: "Staff decisions by outcome (approved/rejected/reversal_failed).",
		},
		[]string{"outcome"},
	)

	refundSplitStateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refund_split_state_total",
			Help: "Local refund writes that failed after a successful processor reversal. Every increment needs manual reconciliation.",
		},
	)
)

func IncRefundRequests() {
	refundRequestsTotal.Inc()
}

func IncRefundDecision(outcome string) {
	refundDecisionsTotal.WithLabelValues(outcome).Inc()
}

func IncRefundSplitState() {
	refundSplitStateTotal.Inc()
}
