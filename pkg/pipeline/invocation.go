package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hayden74/cogira-frontend/pkg/api"
)

// Invocation is the per-request scratch space shared by the stages of one chain run.
type Invocation struct {
	Event *api.Event
	// Request is set once the event has been normalized.
	Request       *api.Request
	CorrelationID string
	Start         time.Time
	// Response is the in-flight response. Setting it from a before hook
	// short-circuits the handler.
	Response *api.Response

	logger         *slog.Logger
	err            error
	metricsEmitted bool
}

func newInvocation(ev *api.Event, logger *slog.Logger) *Invocation {
	if ev == nil {
		ev = &api.Event{}
	}
	return &Invocation{Event: ev, Start: time.Now(), logger: logger}
}

// Logger returns the request-scoped logger.
func (inv *Invocation) Logger() *slog.Logger {
	if inv.logger == nil {
		return slog.Default()
	}
	return inv.logger
}

// SetLogger replaces the request-scoped logger.
func (inv *Invocation) SetLogger(logger *slog.Logger) {
	inv.logger = logger
}

// Err returns the error that sent the invocation down the error path, if any.
func (inv *Invocation) Err() error {
	return inv.err
}

// ShortCircuited reports whether a before hook already produced the response.
func (inv *Invocation) ShortCircuited() bool {
	return inv.Response != nil && inv.Request == nil
}

// Route returns the route template addressed by the event, such as /users/{id}.
// Identifiers are collapsed; the domain segment is copied from the path.
func (inv *Invocation) Route() string {
	return RouteTemplate(inv.Event.RawPath)
}

// RouteTemplate maps a raw path to its route template.
func RouteTemplate(rawPath string) string {
	_, path := api.SplitVersionPrefix(rawPath)
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	switch len(segments) {
	case 0:
		return "/"
	case 1:
		return "/" + segments[0]
	default:
		return "/" + segments[0] + "/{id}"
	}
}

type loggerKey struct{}

// WithLogger stores logger on ctx for handlers.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the request-scoped logger carried by ctx, or the default logger.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}
