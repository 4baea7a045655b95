package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/hoosier-weekend-helper/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream weather API calls by step (points, forecast) and status.
	WeatherAPICallsTotal *prometheus.CounterVec

	// Upstream latency by step. Watch for: p95 > 2s on either step.
	WeatherAPIDuration *prometheus.HistogramVec

	// Upstream failures by step and error category.
	WeatherAPIErrorsTotal *prometheus.CounterVec

	// Resolutions by town and outcome (resolved, fallback). Fallback ratio is the headline SLI.
	ResolutionsTotal *prometheus.CounterVec

	// End-to-end resolution latency by outcome.
	ResolutionDuration *prometheus.HistogramVec

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per component (0 closed, 1 open, 2 half_open).
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per component.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	trackedTownsMu sync.RWMutex
	trackedTowns   map[string]struct{}

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of weather.gov API calls",
		},
		[]string{"step", "status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "weather.gov API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"step", "status"},
	)
	WeatherAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiErrorsTotal",
			Help: "weather.gov API failures by step and category",
		},
		[]string{"step", "category"},
	)
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherResolutionsTotal",
			Help: "Weather resolutions by town (allow-list; others use town=other) and outcome",
		},
		[]string{"town", "outcome"},
	)
	ResolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherResolutionDurationSeconds",
			Help:    "End-to-end weather resolution latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half_open",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration, WeatherAPIErrorsTotal,
		ResolutionsTotal, ResolutionDuration,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
	)
}

// RegisterRateLimitGauges registers sliding-window gauges backed by the traffic tracker.
// Safe to call more than once; only the first window is used.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// SetTrackedTowns sets the allow-list for the town label. Anything else is recorded as "other".
func SetTrackedTowns(names []string) {
	trackedTownsMu.Lock()
	defer trackedTownsMu.Unlock()
	trackedTowns = make(map[string]struct{}, len(names))
	for _, n := range names {
		trackedTowns[normalizeTownForMetrics(n)] = struct{}{}
	}
}

// MetricTownLabel returns the bounded label value for a town name.
func MetricTownLabel(name string) string {
	n := normalizeTownForMetrics(name)
	trackedTownsMu.RLock()
	_, ok := trackedTowns[n]
	trackedTownsMu.RUnlock()
	if ok {
		return n
	}
	return "other"
}

// RecordResolution records the outcome and latency of one weather resolution.
func RecordResolution(town, outcome string, d time.Duration) {
	ResolutionsTotal.WithLabelValues(MetricTownLabel(town), outcome).Inc()
	ResolutionDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordCircuitBreakerTransition counts a state change and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string, toValue int) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(float64(toValue))
}

func normalizeTownForMetrics(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
