package telemetry

import (
	"context"
	"time"
)

// Observation describes one completed request.
type Observation struct {
	// Route is the route template, such as /users/{id}.
	Route    string
	Method   string
	Status   int
	Duration time.Duration
}

// IsError reports whether the observation counts as a server-side failure.
func (o Observation) IsError() bool {
	return o.Status >= 500
}

// Sink receives request observations.
type Sink interface {
	RecordRequest(ctx context.Context, obs Observation)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, obs Observation)

// RecordRequest calls f.
func (f SinkFunc) RecordRequest(ctx context.Context, obs Observation) {
	f(ctx, obs)
}

// Noop discards observations.
type Noop struct{}

// RecordRequest does nothing.
func (Noop) RecordRequest(context.Context, Observation) {}
