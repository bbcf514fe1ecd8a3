// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

// Outcomes recorded by RateLimitDecisions.
const (
	OutcomeAllowed     = "allowed"
	OutcomeThrottled   = "throttled"
	OutcomeUnavailable = "unavailable"
)

var (
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Admission decisions per flow and outcome",
		},
		[]string{"flow", "outcome"},
	)

	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Payment gateway calls per outcome (success, declined, error)",
		},
		[]string{"outcome"},
	)

	GatewayLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Latency of payment gateway calls",
			Buckets:   prometheus.DefBuckets,
		},
	)

	OrdersProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "processed_total",
			Help:      "Orders taken off the pending queue per result (persisted, duplicate, retried, dead_lettered)",
		},
		[]string{"result"},
	)
)

// ObserveAdmission records one guard decision for flow.
func ObserveAdmission(flow, outcome string) {
	RateLimitDecisions.WithLabelValues(flow, outcome).Inc()
}
