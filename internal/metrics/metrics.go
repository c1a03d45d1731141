package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "backtesting_backend",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backtesting_backend",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "backtesting_backend",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	backtestRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backtesting_backend",
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs.",
		},
		[]string{"status"},
	)

	backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "backtesting_backend",
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Duration of backtest runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	collectorBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backtesting_backend",
			Subsystem: "collector",
			Name:      "batches_total",
			Help:      "Total number of candle ingest batches.",
		},
		[]string{"symbol", "interval", "status"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		backtestRuns,
		backtestDuration,
		collectorBatches,
		collectors.NewGoCollector(),
	)
}

// Handler serves the registry for GET /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func IncrementInFlight() { httpInFlight.Inc() }
func DecrementInFlight() { httpInFlight.Dec() }

func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordBacktestRun(status string, duration time.Duration) {
	backtestRuns.WithLabelValues(status).Inc()
	backtestDuration.Observe(duration.Seconds())
}

func RecordCollectorBatch(symbol, interval, status string) {
	collectorBatches.WithLabelValues(symbol, interval, status).Inc()
}
