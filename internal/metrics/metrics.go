// Package metrics defines the Prometheus metrics exported by the API server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the API's collectors and the registry they are registered in.
type Metrics struct {
	AuthRequests    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the metrics on a private registry so tests can build as
// many instances as they need.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		AuthRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "readoai_auth_requests_total",
				Help: "Total number of auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "readoai_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern and status code",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
		registry: registry,
	}

	registry.MustRegister(m.AuthRequests)
	registry.MustRegister(m.RequestDuration)

	return m
}

// RecordAuth increments the auth outcome counter. Safe on a nil receiver.
func (m *Metrics) RecordAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthRequests.WithLabelValues(operation, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
