// Package promexport defines the Prometheus collectors the routing
// engine updates. No HTTP handler is shipped here; embedding gateways
// expose the default registry themselves.
package promexport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vmroute"

var (
	// RoutedRequests counts routing decisions per target. The fallback
	// label separates normal selections from last-resort fallbacks.
	RoutedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routed_requests_total",
			Help:      "Total routing decisions, per target",
		},
		[]string{"target_id", "fallback"},
	)

	// RoutingErrors counts failed routing decisions by error reason.
	RoutingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_errors_total",
			Help:      "Total routing decisions that returned an error",
		},
		[]string{"reason"},
	)

	// RegisteredTargets tracks the current registry size.
	RegisteredTargets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_targets",
			Help:      "Number of currently registered targets",
		},
	)

	// UnhealthyTargets tracks how many targets the last health sweep
	// classified unhealthy.
	UnhealthyTargets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unhealthy_targets",
			Help:      "Targets classified unhealthy by the last health sweep",
		},
	)

	// SelectionConfidence observes the confidence of each selection.
	SelectionConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "selection_confidence",
			Help:      "Confidence of routing selections",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)
)
