// Package metrics registers the Prometheus instruments the core reports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reconciliations counts authoritative recounts by interaction kind.
	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailtalk_reconciliations_total",
			Help: "Authoritative count queries issued, by interaction kind",
		},
		[]string{"kind"},
	)

	// RealtimeEvents counts change notifications by table and event type.
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailtalk_realtime_events_total",
			Help: "Row change events observed, by table and event type",
		},
		[]string{"table", "event"},
	)

	// FeedRefreshes counts full feed refetches by trigger.
	FeedRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailtalk_feed_refreshes_total",
			Help: "Full feed refetches, by trigger (manual, realtime)",
		},
		[]string{"trigger"},
	)

	// GatewayErrors counts failed gateway calls by operation.
	GatewayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailtalk_gateway_errors_total",
			Help: "Failed gateway operations, by operation name",
		},
		[]string{"op"},
	)
)
