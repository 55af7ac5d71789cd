// Package metrics registers the Prometheus instrumentation for the
// trading core in a single init-block registration style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SignalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brooks_signals_emitted_total",
			Help: "Total number of signals emitted, by pattern and side.",
		},
		[]string{"pattern", "side"},
	)

	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brooks_orders_total",
			Help: "Total number of orders, by stage and outcome.",
		},
		[]string{"stage", "outcome"}, // stage: entry/tp1/tp2/stop, outcome: submitted/filled/rejected
	)

	PositionsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brooks_positions_open",
			Help: "Current number of open positions, by user.",
		},
		[]string{"user"},
	)

	CooldownBlocked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brooks_cooldown_blocked_total",
			Help: "Total number of candidate signals rejected by the cooldown/overlap gate.",
		},
	)

	DeltaSnapshotLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "brooks_delta_snapshot_latency_seconds",
			Help:    "Latency of delta engine snapshot computation.",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationMismatch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brooks_reconciliation_mismatch_total",
			Help: "Total number of position reconciliation mismatches against the exchange, by user.",
		},
		[]string{"user"},
	)
)

func init() {
	prometheus.MustRegister(
		SignalsEmitted,
		OrdersTotal,
		PositionsOpen,
		CooldownBlocked,
		DeltaSnapshotLatency,
		ReconciliationMismatch,
	)
}
