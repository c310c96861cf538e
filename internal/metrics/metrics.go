// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MovesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_moves_applied_total",
		Help: "Stock moves appended to the ledger by reason",
	}, []string{"reason"})

	TxRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_tx_retries_total",
		Help: "Transactions retried after lock contention, by operation",
	}, []string{"op"})

	ContentionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_contention_failures_total",
		Help: "Operations that exhausted their retry budget",
	}, []string{"op"})

	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_reservations_total",
		Help: "Reservation outcomes",
	}, []string{"result"})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_order_transitions_total",
		Help: "Order status transitions by order kind and target status",
	}, []string{"kind", "status"})

	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_alerts_raised_total",
		Help: "Stock alerts raised by type",
	}, []string{"type"})

	ChannelPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_channel_pushes_total",
		Help: "Availability messages pushed to the channel feed",
	}, []string{"result"})
)
