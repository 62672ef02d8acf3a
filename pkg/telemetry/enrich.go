package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// RecordPolicyDecision annotates the span with an authorization decision.
func RecordPolicyDecision(span trace.Span, allowed bool, query string) {
	if span == nil || !span.IsRecording() {
		return
	}

	span.SetAttributes(
		attribute.Bool("policy.allowed", allowed),
		attribute.String("policy.query", query),
	)
	if !allowed {
		span.AddEvent("policy.denied")
	}
}

// RecordOutcome attaches the final response status to the span. Server-side failures
// mark the span as errored; the cause, when known, is recorded as an exception event.
func RecordOutcome(span trace.Span, status int, code string, cause error) {
	if span == nil || !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{attribute.Int("http.response.status_code", status)}
	if code != "" {
		attrs = append(attrs, attribute.String("error.code", code))
	}
	span.SetAttributes(attrs...)

	if cause != nil {
		span.RecordError(cause)
	}
	if status >= 500 {
		span.SetStatus(codes.Error, "internal error")
	}
}

// ExtractTraceContext returns ctx carrying the remote span described by headers.
// A ctx that already carries a span is returned unchanged.
func ExtractTraceContext(ctx context.Context, headers map[string]string) context.Context {
	if trace.SpanContextFromContext(ctx).IsValid() || len(headers) == 0 {
		return ctx
	}
	carrier := make(propagation.MapCarrier, len(headers))
	for k, v := range headers {
		carrier[strings.ToLower(k)] = v
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
