package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth stages reported by RecordAuth.
const (
	StageGate  = "gate"
	StageGuard = "guard"
)

// Metrics holds the service collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	auth            *prometheus.CounterVec
	permissions     *prometheus.CounterVec
	incentives      *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Error responses by machine-readable code.",
		}, []string{"method", "path", "code"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_outcomes_total",
			Help: "Gate and guard outcomes.",
		}, []string{"stage", "outcome"}),
		permissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permission_decisions_total",
			Help: "Permission evaluator decisions.",
		}, []string{"decision"}),
		incentives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incentive_sync_total",
			Help: "Incentive synchronisation outcomes by source type.",
		}, []string{"source", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.errors,
		m.auth,
		m.permissions,
		m.incentives,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest counts a finished request. path should be the route template.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requests.WithLabelValues(method, path, code).Inc()
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, path, code).Inc()
}

func (m *Metrics) RecordAuth(stage, outcome string) {
	if m == nil {
		return
	}
	m.auth.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) RecordPermission(decision string) {
	if m == nil {
		return
	}
	m.permissions.WithLabelValues(decision).Inc()
}

func (m *Metrics) RecordIncentive(source, outcome string) {
	if m == nil {
		return
	}
	m.incentives.WithLabelValues(source, outcome).Inc()
}
