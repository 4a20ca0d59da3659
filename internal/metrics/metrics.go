// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CORS decision label values.
const (
	DecisionAllowed  = "allowed"
	DecisionRejected = "rejected"
	DecisionNoOrigin = "no_origin"
)

// Metrics groups the collectors of one registry so tests can use their own.
type Metrics struct {
	registry        *prometheus.Registry
	corsDecisions   *prometheus.CounterVec
	corsPreflights  prometheus.Counter
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the service collectors plus the Go and process collectors
// on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		corsDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cors_decisions_total",
				Help: "Origin authorization decisions by outcome",
			},
			[]string{"decision"},
		),
		corsPreflights: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cors_preflights_total",
				Help: "Preflight requests answered without reaching a handler",
			},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	m.registry.MustRegister(
		m.corsDecisions,
		m.corsPreflights,
		m.requestsTotal,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCORSDecision counts one decision. A nil receiver is a no-op.
func (m *Metrics) ObserveCORSDecision(decision string) {
	if m == nil {
		return
	}
	m.corsDecisions.WithLabelValues(decision).Inc()
}

// ObservePreflight counts one short-circuited preflight.
func (m *Metrics) ObservePreflight() {
	if m == nil {
		return
	}
	m.corsPreflights.Inc()
}

// ObserveRequest records a finished request.
func (m *Metrics) ObserveRequest(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, status).Inc()
	m.requestDuration.WithLabelValues(method).Observe(seconds)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
