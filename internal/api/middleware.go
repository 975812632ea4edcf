// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/dailyrecap/pipeline/internal/metrics"
	"github.com/dailyrecap/pipeline/internal/security"
)

// ChiMiddlewareConfig configures the CORS and rate-limiting middleware
// wrapping the admin HTTP surface.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	RateLimitDisabled  bool
}

// DefaultChiMiddlewareConfig returns a secure default: no CORS origins
// (must be configured explicitly) and a 100 req/min rate limit.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
	}
}

// ChiMiddleware builds Chi-compatible middleware from a ChiMiddlewareConfig.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware builds a ChiMiddleware. A nil config falls back to
// DefaultChiMiddlewareConfig.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", security.HeaderSignature, security.HeaderTimestamp, security.HeaderNonce, security.HeaderIdempotencyKey},
		AllowCredentials: false,
		MaxAge:           86400,
	})
	return &ChiMiddleware{config: config, cors: corsHandler}
}

// CORS returns the configured CORS middleware.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns an IP-keyed rate limiter, or a no-op when disabled.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.RateLimitCustom(m.config.RateLimitRequests, m.config.RateLimitWindow)
}

// RateLimitCustom returns an IP-keyed rate limiter with endpoint-specific
// bounds, for routes with a different rate than the global default.
func (m *ChiMiddleware) RateLimitCustom(requests int, window time.Duration) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimitHit(r.URL.Path)
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		}),
	)
}

// RateLimitHealth is permissive, since monitoring tools poll health checks
// far more often than the admin API's default rate allows.
var RateLimitHealth = struct {
	Requests int
	Window   time.Duration
}{Requests: 1000, Window: time.Minute}

// RateLimitWebhook is tuned for GitHub's delivery retry behavior: enough
// headroom for a burst of redeliveries without starving genuine traffic.
var RateLimitWebhook = struct {
	Requests int
	Window   time.Duration
}{Requests: 300, Window: time.Minute}

// chiAdapt adapts an http.HandlerFunc middleware (the signature used by
// internal/middleware and internal/security) to Chi's
// func(http.Handler) http.Handler convention.
func chiAdapt(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SecurityHeaders adds the baseline security headers every admin API
// response should carry.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	}
}
