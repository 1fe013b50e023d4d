package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TipsTotal counts tip requests by outcome
	TipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipbot_tips_total",
			Help: "Total number of tip requests",
		},
		[]string{"outcome"},
	)

	// QueueDepth tracks jobs waiting in the transaction queue
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tipbot_tx_queue_depth",
			Help: "Number of jobs waiting in the transaction queue",
		},
	)

	// QueueJobsTotal counts executed queue jobs by name and status
	QueueJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipbot_tx_queue_jobs_total",
			Help: "Total number of transaction queue jobs executed",
		},
		[]string{"job", "status"},
	)

	// JobDuration tracks queue job execution time
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tipbot_tx_queue_job_duration_seconds",
			Help:    "Transaction queue job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// SweepAmount tracks swept deposit amounts in whole token units
	SweepAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tipbot_sweep_amount",
			Help:    "Amount of tokens swept from deposit addresses",
			Buckets: []float64{0.01, 0.1, 1, 10, 100, 1000},
		},
	)

	// NotificationsTotal counts direct-message deliveries by status
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipbot_notifications_total",
			Help: "Total number of direct messages sent",
		},
		[]string{"status"},
	)
)
