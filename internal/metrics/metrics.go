package metrics

import (
	"time"

	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// Outbound HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Run metrics
	simulationsTotal   *prometheus.CounterVec
	simulationDuration *prometheus.HistogramVec
	tradesTotal        *prometheus.CounterVec
	signalsGenerated   *prometheus.CounterVec
	strategyProfit     *prometheus.GaugeVec
	ordersTotal        *prometheus.CounterVec
	signalsRouted      *prometheus.CounterVec
	runsTotal          *prometheus.CounterVec
	runDuration        prometheus.Histogram
	lastRunTimestamp   prometheus.Gauge
	watchlistSymbols   prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantbench_http_requests_total",
				Help: "Total number of outbound HTTP requests",
			},
			[]string{"host", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quantbench_http_request_duration_seconds",
				Help:    "Outbound HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"host"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quantbench_http_requests_in_flight",
				Help: "Number of outbound HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.simulationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantbench_simulations_total",
			Help: "Total number of (symbol, strategy) simulations",
		},
		[]string{"strategy", "status"},
	)
	r.simulationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantbench_simulation_duration_seconds",
			Help:    "Simulation duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"strategy"},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantbench_trades_total",
			Help: "Total number of simulated trades",
		},
		[]string{"strategy", "outcome"},
	)
	r.signalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantbench_signals_generated_total",
			Help: "Total number of pending signals left on the final bar",
		},
		[]string{"strategy", "action"},
	)
	r.strategyProfit = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quantbench_strategy_profit",
			Help: "Profit of the latest simulation per symbol and strategy",
		},
		[]string{"symbol", "strategy"},
	)
	r.ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantbench_orders_total",
			Help: "Total number of orders submitted for signals",
		},
		[]string{"broker", "status"},
	)
	r.signalsRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantbench_notifications_total",
			Help: "Total number of notifications sent",
		},
		[]string{"notifier", "status"},
	)
	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantbench_runs_total",
			Help: "Total number of batch runs",
		},
		[]string{"status"},
	)
	r.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quantbench_run_duration_seconds",
			Help:    "Batch run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)
	r.lastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantbench_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		},
	)
	r.watchlistSymbols = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantbench_watchlist_symbols",
			Help: "Number of symbols in watchlist",
		},
	)

	reg.MustRegister(r.simulationsTotal)
	reg.MustRegister(r.simulationDuration)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.signalsGenerated)
	reg.MustRegister(r.strategyProfit)
	reg.MustRegister(r.ordersTotal)
	reg.MustRegister(r.signalsRouted)
	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.lastRunTimestamp)
	reg.MustRegister(r.watchlistSymbols)

	return r
}

// ObserveSimulation records one simulated pair. It satisfies backtest.Observer.
func (r *Registry) ObserveSimulation(strategy string, elapsed time.Duration, result *backtest.StrategyResult, err error) {
	r.simulationDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if err != nil || result == nil {
		r.simulationsTotal.WithLabelValues(strategy, "failed").Inc()
		return
	}
	r.simulationsTotal.WithLabelValues(strategy, "ok").Inc()
	r.strategyProfit.WithLabelValues(result.Symbol, strategy).Set(result.Profit)
	for _, t := range result.Trades {
		outcome := "loss"
		if t.IsWin() {
			outcome = "win"
		}
		r.tradesTotal.WithLabelValues(strategy, outcome).Inc()
	}
	if !result.Pending.IsNone() {
		r.signalsGenerated.WithLabelValues(strategy, string(result.Pending)).Inc()
	}
}

// RecordRequest records metrics for an outbound HTTP request.
func (r *Registry) RecordRequest(host string, status int, duration float64) {
	r.httpRequestsTotal.WithLabelValues(host, statusToString(status)).Inc()
	r.httpRequestDuration.WithLabelValues(host).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordOrder records a submitted order by its final status.
func (r *Registry) RecordOrder(broker, status string) {
	r.ordersTotal.WithLabelValues(broker, status).Inc()
}

// RecordSignalRouted records a notification attempt.
func (r *Registry) RecordSignalRouted(notifier, status string) {
	r.signalsRouted.WithLabelValues(notifier, status).Inc()
}

// RecordRun records a batch run completion.
func (r *Registry) RecordRun(status string, duration time.Duration, finished time.Time) {
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(duration.Seconds())
	r.lastRunTimestamp.Set(float64(finished.Unix()))
}

// SetWatchlistSize sets the watchlist size.
func (r *Registry) SetWatchlistSize(size int) {
	r.watchlistSymbols.Set(float64(size))
}

// WriteTextfile writes all metrics in the node_exporter textfile format.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}

func statusToString(status int) string {
	switch {
	case status == 0:
		return "error"
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
