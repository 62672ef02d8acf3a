package pipeline

import (
	"github.com/hayden74/cogira-frontend/pkg/api"
)

// ContentSecurityPolicy admits the documentation viewer assets and nothing else external.
const ContentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; " +
	"style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data: https:; connect-src 'self'; " +
	"font-src 'self' https://unpkg.com; object-src 'none'; media-src 'self'; frame-src 'none'"

var securityHeaders = [][2]string{
	{"Content-Security-Policy", ContentSecurityPolicy},
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-XSS-Protection", "1; mode=block"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=()"},
}

// SecurityHeadersStage hardens every outbound response.
type SecurityHeadersStage struct{}

// NewSecurityHeadersStage returns the security headers stage.
func NewSecurityHeadersStage() SecurityHeadersStage { return SecurityHeadersStage{} }

func (SecurityHeadersStage) Name() string { return "security_headers" }

// Decorate sets the hardening headers and strips server identification.
func (SecurityHeadersStage) Decorate(_ *Invocation, headers api.Headers) {
	for _, h := range securityHeaders {
		headers.Set(h[0], h[1])
	}
	headers.Del("X-Powered-By")
}
