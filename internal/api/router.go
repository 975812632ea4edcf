// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dailyrecap/pipeline/internal/middleware"
	"github.com/dailyrecap/pipeline/internal/security"
)

// NewRouter builds the complete admin HTTP surface: every route except the
// GitHub webhook and /metrics is wrapped by envelope.Verify (HMAC signature,
// timestamp skew, nonce replay, idempotency cache); the webhook route is
// signed by the caller instead and checked by h.Webhook, and /metrics is
// served unauthenticated.
func NewRouter(h *Handler, envelope *security.AdminEnvelope, mw *ChiMiddleware) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiAdapt(middleware.RequestID))
	r.Use(chiAdapt(middleware.PrometheusMetrics))
	r.Use(chiAdapt(middleware.Compression))
	r.Use(mw.CORS())
	r.Use(SecurityHeaders())

	admin := chiAdapt(envelope.Verify)

	r.Route("/health", func(r chi.Router) {
		r.Use(mw.RateLimitCustom(RateLimitHealth.Requests, RateLimitHealth.Window))
		r.Use(admin)
		r.Get("/", h.Health)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/validate-{name}", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(admin)
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			h.ValidateCollaborator(chi.URLParam(req, "name"))(w, req)
		})
	})
	r.Route("/validate", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(admin)
		r.Get("/", h.ValidateAll)
	})

	r.Route("/api/twitch/clips", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(admin)
		r.Get("/", h.ListRecentClips)
		r.Post("/", h.StoreClips)
		r.Put("/", h.UpdateClip)
		r.Get("/stored", h.ListStoredClips)
	})

	r.Route("/api/transcribe", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(admin)
		r.Post("/clip", h.TranscribeClip)
		r.Post("/batch", h.TranscribeBatch)
		r.Get("/status/{id}", h.TranscribeStatus)
	})

	r.Route("/api/deduplication", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(admin)
		r.Post("/check", h.DeduplicationCheck)
		r.Get("/file-info/{id}", h.DeduplicationFileInfo)
		r.Post("/cleanup", h.DeduplicationCleanup)
	})

	r.Route("/api/content", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(admin)
		r.Post("/generate", h.GenerateContent)
	})

	r.Route("/api/jobs", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(admin)
		r.Get("/", h.ListJobs)
		r.Get("/stats", h.JobStats)
		r.Post("/cleanup", h.JobsCleanup)
		r.Get("/{id}/status", h.JobStatus)
	})

	r.Route("/webhook/github", func(r chi.Router) {
		r.Use(mw.RateLimitCustom(RateLimitWebhook.Requests, RateLimitWebhook.Window))
		r.Post("/", h.GitHubWebhook)
	})

	return r
}
