// Package observability holds the Prometheus collectors for the
// orchestration layer. Collectors register on the default registry and are
// served from /metrics by the API when metrics are enabled.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Gateway Metrics ────────────────────────────────────────────────────────

// GatewayRequests counts backend calls by endpoint and outcome.
var GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studio",
	Subsystem: "gateway",
	Name:      "requests_total",
	Help:      "Total backend requests by endpoint and outcome (ok, http_error, network_error).",
}, []string{"endpoint", "outcome"})

// GatewayLatency tracks backend call latency.
var GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "studio",
	Subsystem: "gateway",
	Name:      "request_duration_seconds",
	Help:      "Backend request latency in seconds.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
}, []string{"endpoint"})

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// LedgerReconciliations counts published balances by winning source.
var LedgerReconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studio",
	Subsystem: "ledger",
	Name:      "reconciliations_total",
	Help:      "Total balance reconciliations by source (aggregate, transactions, none).",
}, []string{"source"})

// LedgerAggregateRejected counts aggregate values discarded as malformed.
var LedgerAggregateRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "studio",
	Subsystem: "ledger",
	Name:      "aggregate_rejected_total",
	Help:      "Total aggregate balance values rejected as absent, negative or non-numeric.",
})

// LedgerDeductions counts deduction calls by outcome.
var LedgerDeductions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studio",
	Subsystem: "ledger",
	Name:      "deductions_total",
	Help:      "Total credit deductions by outcome.",
}, []string{"outcome"})

// ─── Invocation Metrics ─────────────────────────────────────────────────────

// Invocations counts tool invocations by tool and outcome.
var Invocations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studio",
	Subsystem: "invocation",
	Name:      "total",
	Help:      "Total tool invocations by tool and outcome (succeeded, failed, superseded, rejected).",
}, []string{"tool", "outcome"})

// InvocationsInFlight tracks invocations currently waiting on the backend.
var InvocationsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "studio",
	Subsystem: "invocation",
	Name:      "in_flight",
	Help:      "Number of tool invocations awaiting a backend response.",
})

// ─── Calendar & Notification Metrics ────────────────────────────────────────

// CalendarRebuilds counts calendar rebuilds by outcome.
var CalendarRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studio",
	Subsystem: "calendar",
	Name:      "rebuilds_total",
	Help:      "Total calendar rebuild-and-persist cycles by outcome.",
}, []string{"outcome"})

// NotificationsPublished counts notifications by level and whether they
// were suppressed as duplicates.
var NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studio",
	Subsystem: "notify",
	Name:      "published_total",
	Help:      "Total notifications by level and delivery (delivered, duplicate).",
}, []string{"level", "delivery"})

// ObserveGateway records one backend call.
func ObserveGateway(endpoint, outcome string, started time.Time) {
	GatewayRequests.WithLabelValues(endpoint, outcome).Inc()
	GatewayLatency.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}
