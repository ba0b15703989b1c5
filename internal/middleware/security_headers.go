package middleware

import (
	"net/http"
)

// SecurityHeaders sets response headers appropriate for a JSON payment API
// that is never rendered in a browser. Responses carry card metadata, so
// they must not be cached or embedded anywhere.
type SecurityHeaders struct {
	isDevelopment bool
}

// NewSecurityHeaders creates the middleware; development mode skips HSTS
// so local plain-HTTP testing keeps working.
func NewSecurityHeaders(isDevelopment bool) *SecurityHeaders {
	return &SecurityHeaders{isDevelopment: isDevelopment}
}

// Middleware wraps next with the security headers
func (sh *SecurityHeaders) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()

		// Payment responses must never land in shared caches
		h.Set("Cache-Control", "no-store")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		// An API serves no browser content at all
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		if !sh.isDevelopment {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}
