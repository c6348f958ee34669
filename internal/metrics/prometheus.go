package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "market_gateway"

// Collector owns the gateway's Prometheus metrics on a private registry
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	ProviderRequests  *prometheus.CounterVec
	ProviderLatency   *prometheus.HistogramVec
	EngineRuns        *prometheus.CounterVec
	EngineErrors      *prometheus.CounterVec
	EngineDuration    *prometheus.HistogramVec
	ContractsReturned prometheus.Histogram
	CacheOperations   *prometheus.CounterVec
	CircuitState      *prometheus.GaugeVec
}

// NewCollector creates and registers all metrics, plus the Go and process collectors
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		),
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of upstream provider requests",
			},
			[]string{"provider", "operation", "outcome"}, // outcome: success|http_N|rate_limited|error
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Upstream provider latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider", "operation"},
		),
		EngineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_computations_total",
				Help:      "Total number of engine computations",
			},
			[]string{"operation"}, // metrics|rank_metrics|rank_options
		),
		EngineErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_errors_total",
				Help:      "Engine errors and dropped contracts by kind",
			},
			[]string{"operation", "kind"},
		),
		EngineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "engine_duration_seconds",
				Help:      "Engine computation time in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),
		ContractsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ranked_contracts_returned",
				Help:      "Number of option contracts returned per ranking",
				Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 500},
			},
		),
		CacheOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_operations_total",
				Help:      "Market cache lookups by namespace and result",
			},
			[]string{"namespace", "result"}, // result: hit|miss
		),
		CircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.ProviderRequests,
		c.ProviderLatency,
		c.EngineRuns,
		c.EngineErrors,
		c.EngineDuration,
		c.ContractsReturned,
		c.CacheOperations,
		c.CircuitState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveProviderRequest records one upstream call
func (c *Collector) ObserveProviderRequest(provider, operation, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.ProviderRequests.WithLabelValues(provider, operation, outcome).Inc()
	c.ProviderLatency.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one served request
func (c *Collector) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveEngineRun records one engine computation and its per-kind error counts
func (c *Collector) ObserveEngineRun(operation string, duration time.Duration, errorsByKind map[string]int) {
	if c == nil {
		return
	}
	c.EngineRuns.WithLabelValues(operation).Inc()
	c.EngineDuration.WithLabelValues(operation).Observe(duration.Seconds())
	for kind, n := range errorsByKind {
		if n > 0 {
			c.EngineErrors.WithLabelValues(operation, kind).Add(float64(n))
		}
	}
}

// ObserveContractsReturned records the size of a ranking response
func (c *Collector) ObserveContractsReturned(n int) {
	if c == nil {
		return
	}
	c.ContractsReturned.Observe(float64(n))
}

// ObserveCache records a cache lookup
func (c *Collector) ObserveCache(namespace string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheOperations.WithLabelValues(namespace, result).Inc()
}

// SetCircuitState publishes a breaker state as 0, 1 or 2
func (c *Collector) SetCircuitState(name string, state int) {
	if c == nil {
		return
	}
	c.CircuitState.WithLabelValues(name).Set(float64(state))
}
