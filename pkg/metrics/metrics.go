package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollTicks records poll-loop ticks by outcome
	// (notified|skipped_cooldown|skipped_gate|no_orders|error).
	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopperd_poll_ticks_total",
			Help: "Total number of order poll ticks by outcome",
		},
		[]string{"result"},
	)

	// GateChecks counts eligibility gate evaluations and their outcome
	// (pass|block|error) per named gate.
	GateChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopperd_gate_checks_total",
			Help: "Total number of eligibility gate checks",
		},
		[]string{"gate", "result"},
	)

	// Notifications counts dispatcher deliveries by channel and result.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopperd_notifications_total",
			Help: "Notification deliveries by channel and result",
		},
		[]string{"channel", "result"},
	)

	// PushMessages counts normalized push payloads by type.
	PushMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopperd_push_messages_total",
			Help: "Push payloads processed by payload type",
		},
		[]string{"type"},
	)

	// ActiveClaims tracks unexpired local batch-assignment claims.
	ActiveClaims = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shopperd_active_claims",
			Help: "Number of unexpired local order claims",
		},
	)

	// RealtimeConnections tracks connected dashboard websockets.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shopperd_realtime_connections",
			Help: "Number of connected realtime subscribers",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopperd_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
