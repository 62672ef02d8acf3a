package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestOTelRecordRequest(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	sink, err := NewOTel(provider, MetricsConfig{Service: "cogira-backend", Environment: "test"})
	if err != nil {
		t.Fatalf("new otel sink: %v", err)
	}

	sink.RecordRequest(ctx, Observation{
		Route:    "/users/{id}",
		Method:   "GET",
		Status:   503,
		Duration: 150 * time.Millisecond,
	})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	metrics := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			metrics[m.Name] = m
		}
	}

	requests, ok := metrics["cogira.http.requests_total"]
	if !ok {
		t.Fatalf("missing cogira.http.requests_total metric")
	}
	reqData, ok := requests.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type for requests metric")
	}
	if len(reqData.DataPoints) != 1 || reqData.DataPoints[0].Value != 1 {
		t.Fatalf("expected a single request count of 1, got %+v", reqData.DataPoints)
	}
	if value, ok := reqData.DataPoints[0].Attributes.Value(attribute.Key("http.route")); !ok || value.AsString() != "/users/{id}" {
		t.Fatalf("expected http.route attribute /users/{id}, got %v", value)
	}
	if value, ok := reqData.DataPoints[0].Attributes.Value(attribute.Key("deployment.environment")); !ok || value.AsString() != "test" {
		t.Fatalf("expected deployment.environment attribute test, got %v", value)
	}

	errorsMetric, ok := metrics["cogira.http.errors_total"]
	if !ok {
		t.Fatalf("missing cogira.http.errors_total metric")
	}
	if errData := errorsMetric.Data.(metricdata.Sum[int64]); errData.DataPoints[0].Value != 1 {
		t.Fatalf("expected error count 1, got %d", errData.DataPoints[0].Value)
	}

	hist, ok := metrics["cogira.http.duration_ms"]
	if !ok {
		t.Fatalf("missing cogira.http.duration_ms metric")
	}
	histData := hist.Data.(metricdata.Histogram[float64])
	if histData.DataPoints[0].Count != 1 {
		t.Fatalf("expected histogram count 1, got %d", histData.DataPoints[0].Count)
	}
	if histData.DataPoints[0].Sum != 150 {
		t.Fatalf("expected histogram sum 150, got %v", histData.DataPoints[0].Sum)
	}
}

func TestOTelRecordRequestSuccessSkipsErrorCounter(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	sink, err := NewOTel(provider, MetricsConfig{})
	if err != nil {
		t.Fatalf("new otel sink: %v", err)
	}
	sink.RecordRequest(ctx, Observation{Route: "/users", Method: "GET", Status: 200, Duration: time.Millisecond})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == "cogira.http.errors_total" {
				t.Fatalf("error counter recorded for a 200 response")
			}
		}
	}
}

func TestRecordOutcome(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)
	tracer := tp.Tracer("test")

	_, span := tracer.Start(context.Background(), "pipeline.handle")
	RecordOutcome(span, 500, "internal", errors.New("db down"))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[0].Status())
	}

	attrs := attribute.NewSet(spans[0].Attributes()...)
	if value, ok := attrs.Value(attribute.Key("http.response.status_code")); !ok || value.AsInt64() != 500 {
		t.Fatalf("expected status attribute 500, got %v", value)
	}
	if value, ok := attrs.Value(attribute.Key("error.code")); !ok || value.AsString() != "internal" {
		t.Fatalf("expected error.code internal, got %v", value)
	}
	if len(spans[0].Events()) != 1 || spans[0].Events()[0].Name != "exception" {
		t.Fatalf("expected a single exception event, got %v", spans[0].Events())
	}

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown tracer provider: %v", err)
	}
}

func TestRecordPolicyDecision(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)

	_, span := tp.Tracer("test").Start(context.Background(), "authz")
	RecordPolicyDecision(span, false, "data.cogira.authz.allow")
	span.End()

	spans := recorder.Ended()
	attrs := attribute.NewSet(spans[0].Attributes()...)
	if value, ok := attrs.Value(attribute.Key("policy.allowed")); !ok || value.AsBool() {
		t.Fatalf("expected policy.allowed false")
	}
	if len(spans[0].Events()) != 1 || spans[0].Events()[0].Name != "policy.denied" {
		t.Fatalf("expected policy.denied event")
	}
}

func TestHeaderAttributesRedactsCredentials(t *testing.T) {
	attrs := attribute.NewSet(HeaderAttributes(map[string]string{
		"Authorization": "Bearer secret",
		"Content-Type":  "application/json",
		"Cookie":        "session=abc",
	})...)

	if value, _ := attrs.Value("http.request.header.authorization"); value.AsString() != "[REDACTED]" {
		t.Fatalf("authorization header leaked: %v", value.AsString())
	}
	if value, _ := attrs.Value("http.request.header.cookie"); value.AsString() != "[REDACTED]" {
		t.Fatalf("cookie header leaked: %v", value.AsString())
	}
	if value, _ := attrs.Value("http.request.header.content_type"); value.AsString() != "application/json" {
		t.Fatalf("expected content type attribute, got %v", value.AsString())
	}
	if HeaderAttributes(nil) != nil {
		t.Fatalf("expected nil attributes for no headers")
	}
}

func TestSetupProviderWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupProvider(context.Background(), Config{ServiceName: "cogira-backend"})
	if err != nil {
		t.Fatalf("setup provider: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "ParentBased{root:AlwaysOnSampler"},
		{1, "ParentBased{root:AlwaysOnSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.ratio).Description(); !strings.HasPrefix(got, tt.want) {
			t.Errorf("sampler(%v) = %q, want prefix %q", tt.ratio, got, tt.want)
		}
	}
}

func TestExtractTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator()) })

	ctx := ExtractTraceContext(context.Background(), map[string]string{
		"Traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	})
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsRemote() || sc.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("expected remote parent, got %+v", sc)
	}

	if got := ExtractTraceContext(ctx, map[string]string{"traceparent": "garbage"}); !trace.SpanContextFromContext(got).Equal(sc) {
		t.Fatalf("existing span context must be kept")
	}
}
