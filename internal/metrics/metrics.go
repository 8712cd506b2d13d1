package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Matching engine
	MatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_matches_total",
			Help: "Waitlist entries matched to a campaign",
		},
	)
	MatchPassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_pass_duration_seconds",
			Help:    "Duration of one full matching pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Allocation lifecycle
	AllocationsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocations_ended_total",
			Help: "Allocations leaving the active state",
		},
		[]string{"outcome"}, // consumed|expired|reclaimed
	)

	// Settlement
	PayoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payouts_total",
			Help: "Payout submission outcomes",
		},
		[]string{"status"}, // success|failed
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(MatchesTotal)
	prometheus.MustRegister(MatchPassDuration)
	prometheus.MustRegister(AllocationsEnded)
	prometheus.MustRegister(PayoutsTotal)
	prometheus.MustRegister(WorkerQueueDepth)
}
