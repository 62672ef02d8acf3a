package pipeline

import (
	"context"
	"time"

	"github.com/hayden74/cogira-frontend/pkg/api"
	"github.com/hayden74/cogira-frontend/pkg/logging"
	"github.com/hayden74/cogira-frontend/pkg/router"
	"github.com/hayden74/cogira-frontend/pkg/telemetry"
)

// UnknownRoute labels requests addressed to an unregistered domain.
const UnknownRoute = "/{unknown}"

// MetricsStage emits exactly one observation per invocation.
type MetricsStage struct {
	sink    telemetry.Sink
	now     func() time.Time
	domains map[string]struct{}
}

// NewMetricsStage returns a metrics stage reporting to sink. A nil sink discards observations.
// When domains are given, requests for any other domain are labelled UnknownRoute so
// clients cannot mint new series.
func NewMetricsStage(sink telemetry.Sink, domains ...string) MetricsStage {
	if sink == nil {
		sink = telemetry.Noop{}
	}
	s := MetricsStage{sink: sink, now: time.Now}
	if len(domains) > 0 {
		s.domains = make(map[string]struct{}, len(domains))
		for _, d := range domains {
			s.domains[d] = struct{}{}
		}
	}
	return s
}

func (s MetricsStage) Name() string { return "metrics" }

// Before records the start time.
func (s MetricsStage) Before(_ context.Context, inv *Invocation) error {
	inv.Start = s.now()
	return nil
}

// After records the handler's or short-circuit's status.
func (s MetricsStage) After(ctx context.Context, inv *Invocation) error {
	s.emit(ctx, inv, inv.Response.Status)
	return nil
}

// OnError records the status the error will be translated to. It never produces a response.
func (s MetricsStage) OnError(ctx context.Context, inv *Invocation, err error) *api.Response {
	s.emit(ctx, inv, Classify(err).Status)
	return nil
}

func (s MetricsStage) emit(ctx context.Context, inv *Invocation, status int) {
	if inv.metricsEmitted {
		return
	}
	inv.metricsEmitted = true

	obs := telemetry.Observation{
		Route:    s.route(inv),
		Method:   inv.Event.Method,
		Status:   status,
		Duration: s.now().Sub(inv.Start),
	}
	s.sink.RecordRequest(ctx, obs)
	logging.LogRequest(ctx, inv.Logger(), obs.Method, obs.Route, obs.Status, obs.Duration)
}

func (s MetricsStage) route(inv *Invocation) string {
	route := inv.Route()
	if s.domains == nil || route == "/" {
		return route
	}
	if _, ok := s.domains[router.DomainOf(route)]; !ok {
		return UnknownRoute
	}
	return route
}
