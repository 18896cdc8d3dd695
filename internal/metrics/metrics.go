package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfguard_cycles_total",
			Help: "Decision cycles by outcome",
		},
		[]string{"action"}, // noop, reconciled, suppressed, applied, failed, aborted
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cfguard_cycle_duration_seconds",
			Help:    "Time taken by one decision cycle",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
	)

	LoadAverage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cfguard_load5",
			Help: "Last sampled 5 minute load average",
		},
	)

	Threshold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cfguard_load_threshold",
			Help: "Configured load threshold for under attack mode",
		},
	)

	UnderAttack = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cfguard_under_attack",
			Help: "1 when the last observed remote mode was under_attack",
		},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfguard_mode_transitions_total",
			Help: "Security level changes applied through the API",
		},
		[]string{"to"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfguard_api_requests_total",
			Help: "Cloudflare API requests",
		},
		[]string{"op", "status"}, // status: success, failed
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cfguard_api_request_duration_seconds",
			Help:    "Cloudflare API request latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"op"},
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfguard_alerts_total",
			Help: "Alert notifications by channel and status",
		},
		[]string{"channel", "status"}, // status: sent, failed, suppressed
	)

	LockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cfguard_lock_contention_total",
			Help: "Cycles skipped because another invocation held the lock",
		},
	)
)
