// Package telemetry wires request metrics and OpenTelemetry tracing for the
// request pipeline.
//
// Metrics are recorded through the Sink capability. A sink is selected once at
// startup (no-op, Prometheus or OpenTelemetry) and injected into the pipeline's
// metrics stage. Trace provider setup, span enrichment and attribute redaction
// helpers live alongside so operators can correlate responses, policy decisions and
// logs through the correlation id.
package telemetry
