// Package router dispatches canonical requests to domain handlers by the first
// segment of the normalized path.
package router

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/hayden74/cogira-frontend/pkg/api"
)

// Handler serves every operation of one domain.
type Handler interface {
	Handle(ctx context.Context, req *api.Request) (*api.Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *api.Request) (*api.Response, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req *api.Request) (*api.Response, error) {
	return f(ctx, req)
}

// Registry maps domain keys to handlers. It is populated by the composition root
// before serving and read-only afterwards.
type Registry map[string]Handler

// Register adds h under domain. Registering the same domain twice is an error.
func (r Registry) Register(domain string, h Handler) error {
	if domain == "" || strings.Contains(domain, "/") {
		return fmt.Errorf("router: invalid domain key %q", domain)
	}
	if h == nil {
		return fmt.Errorf("router: nil handler for domain %q", domain)
	}
	if _, exists := r[domain]; exists {
		return fmt.Errorf("router: domain %q already registered", domain)
	}
	r[domain] = h
	return nil
}

// Domains lists registered domain keys in sorted order.
func (r Registry) Domains() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DomainOf returns the first non-empty segment of path.
func DomainOf(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}

// Route invokes the handler registered for req's domain. An unknown domain is
// answered with a 404 response rather than an error; handler errors are returned
// unchanged.
func Route(ctx context.Context, req *api.Request, registry Registry) (*api.Response, error) {
	domain := DomainOf(req.Path)
	h, ok := registry[domain]
	if !ok {
		return api.JSON(http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("Domain '%s' not found", domain),
		})
	}
	return h.Handle(ctx, req)
}
