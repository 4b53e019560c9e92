// Package metrics exposes Prometheus counters for the trading pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersSubmitted counts orders sent to the broker, by trade type.
	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundpilot",
		Name:      "orders_submitted_total",
		Help:      "Orders submitted to the broker.",
	}, []string{"type"})

	// OrdersConfirmed counts transactions that reached a terminal state.
	OrdersConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundpilot",
		Name:      "orders_settled_total",
		Help:      "Transactions settled to a terminal state.",
	}, []string{"status"})

	// BacktestsRun counts completed backtest simulations.
	BacktestsRun = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fundpilot",
		Name:      "backtests_run_total",
		Help:      "Backtest simulations completed.",
	})

	// RefreshCycles counts position valuation refresh sweeps.
	RefreshCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fundpilot",
		Name:      "position_refresh_cycles_total",
		Help:      "Position refresh sweeps completed.",
	})
)
