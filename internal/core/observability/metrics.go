// Package observability centralizes the Prometheus metrics emitted by the
// federation core.
package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	driverSearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driver_search_total",
			Help: "Driver search-phase outcomes.",
		},
		[]string{"datasource", "outcome"},
	)

	driverExecuteSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driver_execute_duration_seconds",
			Help:    "Duration of driver execute phases in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"datasource", "outcome"},
	)

	itemsAcceptedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "items_accepted_total",
			Help: "Items accepted into result sets after validation.",
		},
		[]string{"datasource"},
	)

	itemsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "items_dropped_total",
			Help: "Items dropped by the soft schema validator.",
		},
		[]string{"datasource"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream provider calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	fetchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_cache_total",
			Help: "Provider fetch cache results by outcome.",
		},
		[]string{"outcome"},
	)

	coverageOpSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coverage_op_duration_seconds",
			Help:    "Duration of coverage index operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"op", "status"},
	)

	coverageEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coverage_events_total",
			Help: "Coverage events consumed from Kafka by op and status.",
		},
		[]string{"op", "status"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		driverSearchTotal,
		driverExecuteSeconds,
		itemsAcceptedTotal,
		itemsDroppedTotal,
		upstreamLatencySeconds,
		fetchCacheTotal,
		coverageOpSeconds,
		coverageEventsTotal,
	}
}

// Init registers the domain collectors on reg. Safe to call more than once
// (tests hand in fresh registries); duplicate registration is ignored.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveDriverSearch(datasource, outcome string) {
	driverSearchTotal.WithLabelValues(datasource, outcome).Inc()
}

func ObserveDriverExecute(datasource, outcome string, durationSeconds float64) {
	driverExecuteSeconds.WithLabelValues(datasource, outcome).Observe(durationSeconds)
}

func AddItemsAccepted(datasource string, n int) {
	if n > 0 {
		itemsAcceptedTotal.WithLabelValues(datasource).Add(float64(n))
	}
}

func AddItemsDropped(datasource string, n int) {
	if n > 0 {
		itemsDroppedTotal.WithLabelValues(datasource).Add(float64(n))
	}
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func IncFetchHit()  { fetchCacheTotal.WithLabelValues("hit").Inc() }
func IncFetchMiss() { fetchCacheTotal.WithLabelValues("miss").Inc() }

func ObserveCoverageOp(op string, err error, durationSeconds float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	coverageOpSeconds.WithLabelValues(op, status).Observe(durationSeconds)
}

func ObserveCoverageEvent(op string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	coverageEventsTotal.WithLabelValues(op, status).Inc()
	coverageOpSeconds.WithLabelValues("event_"+op, status).Observe(duration.Seconds())
}
