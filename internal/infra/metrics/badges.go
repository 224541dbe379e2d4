package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		badgesAwardedTotal,
		badgeSweepsTotal,
	)
}

var (
	badgesAwardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "badges_awarded_total",
			Help: "Badges awarded (first insert only, replays do not count).",
		},
	)

	badgeSweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "badge_sweeps_total",
			Help: "Self-healing badge sweeps executed (profile load or periodic).",
		},
	)
)

func IncBadgesAwarded() {
	badgesAwardedTotal.Inc()
}

func IncBadgeSweeps() {
	badgeSweepsTotal.Inc()
}
