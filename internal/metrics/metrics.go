package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbsim_ticks_total",
			Help: "Total number of price feed ticks",
		},
		[]string{"scope"},
	)

	opportunities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arbsim_opportunities",
			Help: "Opportunities emitted by the latest live scan",
		},
	)

	tradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbsim_trades_total",
			Help: "Total number of simulated executions",
		},
		[]string{"status", "scope"},
	)

	netProfitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbsim_net_profit_abs_total",
			Help: "Sum of absolute net profit by sign, in quote currency",
		},
		[]string{"sign", "scope"},
	)

	equity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arbsim_equity",
			Help: "Live equity balance in quote currency",
		},
	)

	backtestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbsim_backtest_runs_total",
			Help: "Total number of backtest runs by scenario and outcome",
		},
		[]string{"scenario", "outcome"},
	)

	enrichmentFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbsim_enrichment_failures_total",
			Help: "Enrichment calls that failed or returned nothing usable",
		},
		[]string{"kind"},
	)

	rejectedCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbsim_rejected_commands_total",
			Help: "Commands rejected at the session boundary",
		},
		[]string{"command", "reason"},
	)

	streamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arbsim_stream_clients",
			Help: "Connected WebSocket snapshot subscribers",
		},
	)
)

func scope(backtest bool) string {
	if backtest {
		return "backtest"
	}
	return "live"
}

// RecordTick counts one price feed advance.
func RecordTick(backtest bool) {
	ticksTotal.WithLabelValues(scope(backtest)).Inc()
}

// SetOpportunities records the size of the latest live scan.
func SetOpportunities(n int) {
	opportunities.Set(float64(n))
}

// RecordTrade counts one settled execution and its profit.
// Counters cannot decrease, so gains and losses are tracked separately.
func RecordTrade(status string, backtest bool, profit float64) {
	tradesTotal.WithLabelValues(status, scope(backtest)).Inc()
	if profit >= 0 {
		netProfitTotal.WithLabelValues("gain", scope(backtest)).Add(profit)
	} else {
		netProfitTotal.WithLabelValues("loss", scope(backtest)).Add(-profit)
	}
}

// SetEquity records the live equity balance.
func SetEquity(v float64) {
	equity.Set(v)
}

// RecordBacktest counts a finished backtest.
func RecordBacktest(scenario string, cancelled bool) {
	outcome := "completed"
	if cancelled {
		outcome = "cancelled"
	}
	backtestRuns.WithLabelValues(scenario, outcome).Inc()
}

// RecordEnrichmentFailure counts a failed analysis or lesson call.
func RecordEnrichmentFailure(kind string) {
	enrichmentFailures.WithLabelValues(kind).Inc()
}

// RecordRejected counts a command rejected because of the session mode.
func RecordRejected(command, reason string) {
	rejectedCommands.WithLabelValues(command, reason).Inc()
}

// StreamConnected tracks a WebSocket subscriber joining (+1) or leaving (-1).
func StreamConnected(delta int) {
	streamClients.Add(float64(delta))
}
