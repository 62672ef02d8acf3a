package pipeline

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/hayden74/cogira-frontend/pkg/api"
)

// CORSConfig controls origin negotiation and the advertised CORS headers.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig allows any origin.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", api.HeaderCorrelationID},
		ExposedHeaders: []string{api.HeaderCorrelationID},
		MaxAge:         86400,
	}
}

// CORSStage answers preflight requests and advertises CORS headers on every response.
type CORSStage struct {
	cfg CORSConfig
}

// NewCORSStage returns a CORS stage for cfg.
func NewCORSStage(cfg CORSConfig) CORSStage {
	return CORSStage{cfg: cfg}
}

func (s CORSStage) Name() string { return "cors" }

// Before short-circuits preflight requests with an empty 204.
func (s CORSStage) Before(_ context.Context, inv *Invocation) error {
	if strings.EqualFold(inv.Event.Method, http.MethodOptions) && inv.Response == nil {
		inv.Response = &api.Response{Status: http.StatusNoContent, Headers: api.Headers{}}
	}
	return nil
}

// Decorate sets the negotiated CORS headers.
func (s CORSStage) Decorate(inv *Invocation, headers api.Headers) {
	origin, _ := inv.Event.Header("Origin")
	if allowed := s.allowOrigin(origin); allowed != "" {
		headers.Set("Access-Control-Allow-Origin", allowed)
		if allowed != "*" {
			headers.Set("Vary", "Origin")
		}
	}

	if len(s.cfg.AllowedMethods) > 0 {
		headers.Set("Access-Control-Allow-Methods", strings.Join(s.cfg.AllowedMethods, ", "))
	}
	if len(s.cfg.AllowedHeaders) > 0 {
		headers.Set("Access-Control-Allow-Headers", strings.Join(s.cfg.AllowedHeaders, ", "))
	}
	if len(s.cfg.ExposedHeaders) > 0 {
		headers.Set("Access-Control-Expose-Headers", strings.Join(s.cfg.ExposedHeaders, ", "))
	}
	if s.cfg.AllowCredentials {
		headers.Set("Access-Control-Allow-Credentials", "true")
	}
	if s.cfg.MaxAge > 0 {
		headers.Set("Access-Control-Max-Age", strconv.Itoa(s.cfg.MaxAge))
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value, or empty when the
// origin is not allowed.
func (s CORSStage) allowOrigin(origin string) string {
	if slices.Contains(s.cfg.AllowedOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(s.cfg.AllowedOrigins, origin) {
		return origin
	}
	return ""
}
