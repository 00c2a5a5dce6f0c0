// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, a hardening middleware with a
// conservative header set for an API that serves JSON and binary model files
// behind a reverse proxy. HSTS is opt-in and only sent on HTTPS requests.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	EnableHSTS   bool          // only when traffic is HTTPS end-to-end
	HSTSMaxAge   time.Duration // defaults to 180 days
	NoStore      bool          // add Cache-Control: no-store
	EnablePolicy bool          // Permissions-Policy and friends
}

// exposedHeaders are readable by browser clients: correlation id, the
// artifact filename and rate-limit hints.
var exposedHeaders = []string{requestIDHeader, "Content-Disposition", "Retry-After"}

// SecurityHeaders returns a middleware that always sets
//
//	X-Content-Type-Options: nosniff
//	X-Frame-Options: DENY
//	Referrer-Policy: no-referrer
//
// and, depending on opt, Permissions-Policy, no-store cache headers and
// Strict-Transport-Security. It also appends the headers browser clients need
// to Access-Control-Expose-Headers without duplicating existing entries.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		const hdr = "Access-Control-Expose-Headers"
		h.Set(hdr, appendTokens(h.Get(hdr), exposedHeaders))

		c.Next()
	}
}

// appendTokens adds each of add to the comma-separated list cur unless it is
// already present (case-insensitive).
func appendTokens(cur string, add []string) string {
	have := map[string]struct{}{}
	for _, t := range strings.Split(cur, ",") {
		if t = strings.TrimSpace(t); t != "" {
			have[strings.ToLower(t)] = struct{}{}
		}
	}
	out := strings.TrimSpace(cur)
	for _, t := range add {
		if _, ok := have[strings.ToLower(t)]; ok {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += t
	}
	return out
}

// isHTTPS reports whether the request arrived over TLS, directly or through a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
