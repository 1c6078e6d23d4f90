package composer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	laneResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_catalog_lane_results_total",
			Help: "Lane fetch results by lane and outcome (succeeded, failed, stale, unmounted)",
		},
		[]string{"lane", "outcome"},
	)

	laneDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_catalog_lane_duration_seconds",
			Help:    "Time from lane start until its fetch returned",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"lane"},
	)
)
