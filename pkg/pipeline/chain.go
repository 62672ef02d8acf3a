package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hayden74/cogira-frontend/pkg/api"
	"github.com/hayden74/cogira-frontend/pkg/telemetry"
)

const tracerName = "github.com/hayden74/cogira-frontend/pkg/pipeline"

// Stage is a unit of cross-cutting behaviour. A stage takes part in the chain
// through the hook interfaces it implements.
type Stage interface {
	Name() string
}

// BeforeStage runs before the handler.
type BeforeStage interface {
	Stage
	Before(ctx context.Context, inv *Invocation) error
}

// AfterStage runs after a successful handler or short-circuit.
type AfterStage interface {
	Stage
	After(ctx context.Context, inv *Invocation) error
}

// ErrorStage observes failures and may produce the error response.
type ErrorStage interface {
	Stage
	OnError(ctx context.Context, inv *Invocation, err error) *api.Response
}

// Decorator adds headers to every outbound response.
type Decorator interface {
	Stage
	Decorate(inv *Invocation, headers api.Headers)
}

// Terminal handles a normalized request, usually by routing it to a domain.
type Terminal func(ctx context.Context, req *api.Request) (*api.Response, error)

// ErrNoResponse is returned when the terminal handler yields neither a response nor an error.
var ErrNoResponse = errors.New("handler returned no response")

// ErrPanic wraps a panic recovered from a stage or the terminal handler.
var ErrPanic = errors.New("panic")

// Chain executes stages around a terminal handler.
type Chain struct {
	terminal   Terminal
	before     []BeforeStage
	after      []AfterStage
	onError    []ErrorStage
	decorators []Decorator
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Chain.
type Option func(*Chain)

// WithBaseLogger sets the base logger handed to every invocation.
func WithBaseLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		c.logger = logger
	}
}

// WithTracerProvider selects the tracer provider for chain spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Chain) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// NewChain builds a chain running stages, in order, around terminal.
func NewChain(terminal Terminal, stages []Stage, opts ...Option) (*Chain, error) {
	if terminal == nil {
		return nil, errors.New("pipeline: terminal handler is required")
	}

	c := &Chain{
		terminal: terminal,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, s := range stages {
		if s == nil {
			return nil, errors.New("pipeline: nil stage")
		}
		var hooked bool
		if b, ok := s.(BeforeStage); ok {
			c.before = append(c.before, b)
			hooked = true
		}
		if a, ok := s.(AfterStage); ok {
			c.after = append(c.after, a)
			hooked = true
		}
		if e, ok := s.(ErrorStage); ok {
			c.onError = append(c.onError, e)
			hooked = true
		}
		if d, ok := s.(Decorator); ok {
			c.decorators = append(c.decorators, d)
			hooked = true
		}
		if !hooked {
			return nil, fmt.Errorf("pipeline: stage %q implements no hook", s.Name())
		}
	}

	return c, nil
}

// Handle runs ev through the chain. It always returns a response.
func (c *Chain) Handle(ctx context.Context, ev *api.Event) *api.Response {
	inv := newInvocation(ev, c.logger)

	ctx = telemetry.ExtractTraceContext(ctx, inv.Event.Headers)
	ctx, span := c.tracer.Start(ctx, "pipeline.handle",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", inv.Event.Method),
			attribute.String("http.route", inv.Route()),
		),
		trace.WithAttributes(telemetry.HeaderAttributes(inv.Event.Headers)...),
	)
	defer span.End()

	res, err := c.run(ctx, inv)
	if err != nil {
		res = c.fail(ctx, inv, err)
	}
	inv.Response = res

	headers := res.EnsureHeaders()
	for _, d := range c.decorators {
		d.Decorate(inv, headers)
	}

	var code string
	if inv.err != nil {
		code = Classify(inv.err).Code
	}
	span.SetAttributes(attribute.String("correlation.id", inv.CorrelationID))
	telemetry.RecordOutcome(span, res.Status, code, inv.err)

	return res
}

func (c *Chain) run(ctx context.Context, inv *Invocation) (res *api.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			inv.Logger().ErrorContext(ctx, "Recovered panic", "panic", r, "stack", string(debug.Stack()))
			res, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	for _, s := range c.before {
		if err := s.Before(ctx, inv); err != nil {
			return nil, err
		}
	}

	hctx := WithLogger(ctx, inv.Logger())

	if inv.Response == nil {
		req, err := api.Normalize(inv.Event, inv.CorrelationID)
		if err != nil {
			return nil, err
		}
		inv.Request = req
		inv.CorrelationID = req.CorrelationID

		out, err := c.terminal(hctx, req)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, ErrNoResponse
		}
		inv.Response = out
	}

	inv.Response.EnsureHeaders()
	for _, s := range c.after {
		status, body := inv.Response.Status, inv.Response.Body
		err := s.After(hctx, inv)
		inv.Response.Status, inv.Response.Body = status, body
		if err != nil {
			return nil, err
		}
	}

	return inv.Response, nil
}

func (c *Chain) fail(ctx context.Context, inv *Invocation, err error) *api.Response {
	inv.err = err
	hctx := WithLogger(ctx, inv.Logger())

	var out *api.Response
	for _, s := range c.onError {
		if res := s.OnError(hctx, inv, err); res != nil && out == nil {
			out = res
		}
	}
	if out == nil {
		out = api.MustJSON(http.StatusInternalServerError, map[string]string{"message": msgInternal})
	}
	return out
}
