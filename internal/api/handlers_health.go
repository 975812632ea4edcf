// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

const serviceVersion = "0.1.0"

// Health reports process liveness plus uptime. It never probes
// collaborators; use GET /validate-{name} for connectivity checks.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)
	rw.Success(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "dailyrecap-pipeline",
		"version":   h.version,
		"uptime":    time.Since(h.startTime).Seconds(),
	})
}

// ValidateCollaborator probes a single named collaborator (github, twitch,
// drafter, transcriber) registered in Handler.Probes and reports whether
// it is currently reachable.
func (h *Handler) ValidateCollaborator(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := h.writer(w, r)
		probe, ok := h.Probes[name]
		if !ok {
			rw.NotFound("unknown collaborator: " + name)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := probe.Ping(ctx); err != nil {
			rw.Success(map[string]interface{}{
				"collaborator": name,
				"reachable":    false,
				"error":        err.Error(),
			})
			return
		}
		rw.Success(map[string]interface{}{
			"collaborator": name,
			"reachable":    true,
		})
	}
}

// ValidateAll lists every registered collaborator and its reachability,
// backing GET /validate-* without a specific name.
func (h *Handler) ValidateAll(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)

	names := make([]string, 0, len(h.Probes))
	for name := range h.Probes {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	results := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		entry := map[string]interface{}{"collaborator": name}
		if err := h.Probes[name].Ping(ctx); err != nil {
			entry["reachable"] = false
			entry["error"] = err.Error()
		} else {
			entry["reachable"] = true
		}
		results = append(results, entry)
	}
	rw.Success(results)
}
