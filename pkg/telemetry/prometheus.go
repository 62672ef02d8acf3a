package telemetry

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus is a Sink backed by a dedicated Prometheus registry.
type Prometheus struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
	policyReloads   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheus creates the request metrics and registers them on a fresh registry.
func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()

	p := &Prometheus{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cogira_http_requests_total",
				Help: "Total number of requests by route, method and status code",
			},
			[]string{"route", "method", "status_code"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cogira_http_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),

		requestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cogira_http_request_errors_total",
				Help: "Total number of requests answered with a 5xx status",
			},
			[]string{"route", "method"},
		),

		policyReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cogira_policy_reloads_total",
				Help: "Total number of authorization policy reload attempts by status",
			},
			[]string{"status"},
		),

		registry: registry,
	}

	registry.MustRegister(
		p.requestsTotal,
		p.requestDuration,
		p.requestErrors,
		p.policyReloads,
	)

	return p
}

// RecordRequest records one completed request.
func (p *Prometheus) RecordRequest(_ context.Context, obs Observation) {
	p.requestsTotal.WithLabelValues(obs.Route, obs.Method, strconv.Itoa(obs.Status)).Inc()
	p.requestDuration.WithLabelValues(obs.Route, obs.Method).Observe(obs.Duration.Seconds())
	if obs.IsError() {
		p.requestErrors.WithLabelValues(obs.Route, obs.Method).Inc()
	}
}

// RecordPolicyReload records a policy reload attempt.
func (p *Prometheus) RecordPolicyReload(status string) {
	p.policyReloads.WithLabelValues(status).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}
