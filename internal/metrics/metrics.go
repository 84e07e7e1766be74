// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aurora_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	WSConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aurora_ws_connected_clients",
			Help: "Number of connected websocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_ws_messages_total",
			Help: "Realtime messages emitted by type",
		},
		[]string{"type"},
	)

	WSDroppedClients = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aurora_ws_dropped_clients_total",
			Help: "Clients disconnected because their send buffer was full",
		},
	)

	WSMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_ws_messages_dropped_total",
			Help: "Realtime messages discarded because the hub queue was full",
		},
		[]string{"type"},
	)

	ActivitiesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_activities_recorded_total",
			Help: "Activity log entries appended by type",
		},
		[]string{"type"},
	)

	EventsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_events_relayed_total",
			Help: "Realtime envelopes relayed to the message broker by outcome",
		},
		[]string{"outcome"},
	)
)
