package pipeline

import (
	"context"
	"log/slog"

	"github.com/hayden74/cogira-frontend/pkg/api"
)

// CorrelationStage resolves the correlation id and echoes it on every response.
type CorrelationStage struct{}

// NewCorrelationStage returns the correlation stage.
func NewCorrelationStage() CorrelationStage { return CorrelationStage{} }

func (CorrelationStage) Name() string { return "correlation" }

// Before resolves the id once and derives the request logger from it.
func (CorrelationStage) Before(ctx context.Context, inv *Invocation) error {
	if inv.CorrelationID == "" {
		inv.CorrelationID = api.ResolveCorrelationID(inv.Event, "")
	}
	inv.SetLogger(inv.Logger().With(slog.String("correlation_id", inv.CorrelationID)))
	inv.Logger().DebugContext(ctx, "Request received",
		slog.String("method", inv.Event.Method),
		slog.String("path", inv.Event.RawPath),
	)
	return nil
}

// Decorate sets the correlation header.
func (CorrelationStage) Decorate(inv *Invocation, headers api.Headers) {
	if inv.CorrelationID == "" {
		inv.CorrelationID = api.ResolveCorrelationID(inv.Event, "")
	}
	headers.Set(api.HeaderCorrelationID, inv.CorrelationID)
}
