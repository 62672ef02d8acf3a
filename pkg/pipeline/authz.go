package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/hayden74/cogira-frontend/pkg/api"
	"github.com/hayden74/cogira-frontend/pkg/domain"
	"github.com/hayden74/cogira-frontend/pkg/logging"
	"github.com/hayden74/cogira-frontend/pkg/router"
	"github.com/hayden74/cogira-frontend/pkg/telemetry"
)

// Authorizer decides whether a request may proceed.
type Authorizer interface {
	Allowed(ctx context.Context, input map[string]any) (bool, error)
	Query() string
}

// AuthorizationStage evaluates an authorization policy before the handler runs.
type AuthorizationStage struct {
	authorizer Authorizer
}

// NewAuthorizationStage returns an authorization stage backed by authorizer.
func NewAuthorizationStage(authorizer Authorizer) AuthorizationStage {
	return AuthorizationStage{authorizer: authorizer}
}

func (s AuthorizationStage) Name() string { return "authorization" }

// Before denies requests the policy rejects: 401 without credentials, 403 otherwise.
// Short-circuited invocations are not evaluated.
func (s AuthorizationStage) Before(ctx context.Context, inv *Invocation) error {
	if inv.Response != nil || s.authorizer == nil {
		return nil
	}

	input := PolicyInput(inv.Event)
	allowed, err := s.authorizer.Allowed(ctx, input)
	if err != nil {
		return fmt.Errorf("evaluate authorization policy: %w", err)
	}

	telemetry.RecordPolicyDecision(trace.SpanFromContext(ctx), allowed, s.authorizer.Query())
	if allowed {
		return nil
	}

	logging.LogSecurityEvent(ctx, inv.Logger(), "authorization", "deny", s.authorizer.Query())
	if credentials, ok := inv.Event.Header("Authorization"); !ok || strings.TrimSpace(credentials) == "" {
		return domain.Unauthorized("", nil)
	}
	return domain.Forbidden("", nil)
}

// perRequestHeaders differ on every request and would defeat the decision cache.
var perRequestHeaders = map[string]struct{}{
	"x-correlation-id": {},
	"x-request-id":     {},
	"x-amzn-trace-id":  {},
	"traceparent":      {},
	"tracestate":       {},
	"baggage":          {},
	"content-length":   {},
}

// PolicyInput is the document evaluated by the authorization policy. Header
// names are lower-cased; per-request tracing and framing headers are omitted.
func PolicyInput(ev *api.Event) map[string]any {
	_, path := api.SplitVersionPrefix(orRoot(ev.RawPath))
	headers := make(map[string]any, len(ev.Headers))
	for k, v := range ev.Headers {
		name := strings.ToLower(k)
		if _, skip := perRequestHeaders[name]; skip {
			continue
		}
		headers[name] = v
	}

	method := strings.ToUpper(ev.Method)
	if method == "" {
		method = "GET"
	}
	return map[string]any{
		"method":  method,
		"path":    path,
		"domain":  router.DomainOf(path),
		"headers": headers,
	}
}

func orRoot(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
