package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/hayden74/cogira-frontend/pkg/telemetry"

// MetricsConfig carries the constant dimensions attached to every observation.
type MetricsConfig struct {
	Service     string
	Environment string
}

// OTel is a Sink that records OpenTelemetry instruments.
type OTel struct {
	requestCounter   metric.Int64Counter
	errorCounter     metric.Int64Counter
	latencyHistogram metric.Float64Histogram
	base             []attribute.KeyValue
}

// NewOTel creates the request instruments on a meter obtained from provider.
func NewOTel(provider metric.MeterProvider, cfg MetricsConfig) (*OTel, error) {
	meter := provider.Meter(meterName)

	requestCounter, err := meter.Int64Counter(
		"cogira.http.requests_total",
		metric.WithDescription("Requests handled by the pipeline partitioned by route, method and status"),
		metric.WithUnit("{count}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"cogira.http.errors_total",
		metric.WithDescription("Requests answered with a 5xx status"),
		metric.WithUnit("{count}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create error counter: %w", err)
	}

	latencyHistogram, err := meter.Float64Histogram(
		"cogira.http.duration_ms",
		metric.WithDescription("Observed request latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency histogram: %w", err)
	}

	var base []attribute.KeyValue
	if cfg.Service != "" {
		base = append(base, attribute.String("service.name", cfg.Service))
	}
	if cfg.Environment != "" {
		base = append(base, attribute.String("deployment.environment", cfg.Environment))
	}

	return &OTel{
		requestCounter:   requestCounter,
		errorCounter:     errorCounter,
		latencyHistogram: latencyHistogram,
		base:             base,
	}, nil
}

// RecordRequest emits the counters and latency histogram for obs.
func (o *OTel) RecordRequest(ctx context.Context, obs Observation) {
	attrs := make([]attribute.KeyValue, 0, len(o.base)+3)
	attrs = append(attrs, o.base...)
	attrs = append(attrs,
		attribute.String("http.route", obs.Route),
		attribute.String("http.request.method", obs.Method),
		attribute.String("http.response.status_code", strconv.Itoa(obs.Status)),
	)

	o.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if obs.Duration > 0 {
		o.latencyHistogram.Record(ctx, float64(obs.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}

	if obs.IsError() {
		o.errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
