package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "hyrax_auth"

// Metrics holds the Prometheus collectors of one server. Each instance has
// its own registry.
type Metrics struct {
	registry *prometheus.Registry

	APIRequestsTotal    *prometheus.CounterVec
	APIRequestDuration  *prometheus.HistogramVec
	APIRequestsInFlight prometheus.Gauge
	ErrorsTotal         *prometheus.CounterVec

	LoginsTotal         *prometheus.CounterVec
	PDPDecisionsTotal   *prometheus.CounterVec
	PDPDecisionDuration prometheus.Histogram
	SessionsCreated     prometheus.Counter
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		APIRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "api_requests_total",
			Help:      "Total number of HTTP requests by method, endpoint and status.",
		}, []string{"method", "endpoint", "status"}),
		APIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "api_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		APIRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "api_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Errors by type and operation.",
		}, []string{"type", "operation"}),

		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logins_total",
			Help:      "Login interactions by identity provider and outcome.",
		}, []string{"auth_context", "outcome"}),
		PDPDecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pdp_decisions_total",
			Help:      "Access decisions by result.",
		}, []string{"decision"}),
		PDPDecisionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "pdp_decision_duration_seconds",
			Help:      "Time spent deciding access requests.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created.",
		}),
	}

	m.registry.MustRegister(
		m.APIRequestsTotal,
		m.APIRequestDuration,
		m.APIRequestsInFlight,
		m.ErrorsTotal,
		m.LoginsTotal,
		m.PDPDecisionsTotal,
		m.PDPDecisionDuration,
		m.SessionsCreated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// MetricsMiddleware records request counts and latency. Requests for
// /metrics itself are not recorded.
func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.APIRequestsInFlight.Inc()
		defer m.APIRequestsInFlight.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.APIRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.APIRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// RecordError counts an error of errorType during operation.
func (m *Metrics) RecordError(errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(errorType, operation).Inc()
}

// RecordLogin counts a login interaction.
func (m *Metrics) RecordLogin(authContext, outcome string) {
	m.LoginsTotal.WithLabelValues(authContext, outcome).Inc()
}

// RecordDecision counts an access decision and its latency.
func (m *Metrics) RecordDecision(allowed bool, duration time.Duration) {
	decision := "deny"
	if allowed {
		decision = "permit"
	}
	m.PDPDecisionsTotal.WithLabelValues(decision).Inc()
	m.PDPDecisionDuration.Observe(duration.Seconds())
}

// RecordSessionCreated counts a new session.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RegisterMetricsEndpoint exposes m at GET /metrics.
func RegisterMetricsEndpoint(r *gin.Engine, m *Metrics) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})))
}
