package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_ticks_total",
			Help: "Total number of execution ticks",
		},
	)

	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_trades_total",
			Help: "Total number of order submissions by outcome",
		},
		[]string{"symbol", "side", "result"},
	)

	tradeNotional = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trader_trade_notional_usd",
			Help:    "Distribution of executed trade notionals",
			Buckets: prometheus.ExponentialBuckets(10, 2.5, 8),
		},
		[]string{"symbol"},
	)

	equityGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_equity_usd",
			Help: "Current portfolio equity",
		},
	)

	drawdownGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_drawdown_ratio",
			Help: "Current drawdown from the equity high-water mark",
		},
	)

	strategyConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trader_strategy_confidence",
			Help: "Latest per-strategy signal confidence",
		},
		[]string{"strategy"},
	)

	faultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_faults_total",
			Help: "Total number of faults by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradeNotional)
	prometheus.MustRegister(equityGauge)
	prometheus.MustRegister(drawdownGauge)
	prometheus.MustRegister(strategyConfidence)
	prometheus.MustRegister(faultsTotal)
}

// MetricsHandler serves the Prometheus metrics endpoint
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTick records one completed execution tick
func RecordTick() {
	ticksTotal.Inc()
}

// RecordTrade records an order submission outcome
func RecordTrade(symbol, side, result string, notional float64) {
	tradesTotal.WithLabelValues(symbol, side, result).Inc()
	if result == "executed" {
		tradeNotional.WithLabelValues(symbol).Observe(notional)
	}
}

// UpdateEquity updates the equity and drawdown gauges
func UpdateEquity(equity, drawdown float64) {
	equityGauge.Set(equity)
	drawdownGauge.Set(drawdown)
}

// UpdateStrategyConfidence updates the per-strategy confidence gauge
func UpdateStrategyConfidence(strategy string, confidence float64) {
	strategyConfidence.WithLabelValues(strategy).Set(confidence)
}

// RecordFault records a categorized fault
func RecordFault(category string) {
	faultsTotal.WithLabelValues(category).Inc()
}
