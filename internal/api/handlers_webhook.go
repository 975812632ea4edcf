// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/metrics"
	"github.com/dailyrecap/pipeline/internal/models"
)

const maxWebhookBodyBytes = 5 << 20 // 5 MiB, generous for a single GitHub delivery

// githubWebhookPayload extracts the fields common to every event type this
// pipeline correlates, without requiring a dedicated struct per event.
type githubWebhookPayload struct {
	Action     string `json:"action"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// GitHubWebhook handles POST /webhook/github. Unlike every other route on
// this surface it is signed by the caller (GitHub's X-Hub-Signature-256),
// not internal/security.AdminEnvelope.
func (h *Handler) GitHubWebhook(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes+1))
	if err != nil {
		rw.ValidationError("failed to read request body", nil)
		return
	}
	if len(body) > maxWebhookBodyBytes {
		rw.ValidationError("webhook payload too large", nil)
		return
	}

	if err := h.Webhook.Verify(r.Header.Get("X-Hub-Signature-256"), body); err != nil {
		rw.Unauthorized("invalid webhook signature")
		return
	}

	headers := GitHubWebhookHeaders{
		Event:      r.Header.Get("X-GitHub-Event"),
		DeliveryID: r.Header.Get("X-GitHub-Delivery"),
		Signature:  r.Header.Get("X-Hub-Signature-256"),
	}
	if headers.Event == "" || headers.DeliveryID == "" {
		rw.ValidationError("missing X-GitHub-Event or X-GitHub-Delivery header", nil)
		return
	}

	var payload githubWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		rw.SchemaError("malformed webhook payload", nil)
		return
	}

	eventType := models.EventType(headers.Event)
	if err := h.Events.StoreEvent(r.Context(), headers.DeliveryID, eventType, payload.Repository.FullName, payload.Action, json.RawMessage(body)); err != nil {
		rw.InternalError(err)
		return
	}
	metrics.RecordGitHubEvent("webhook", string(eventType))

	rw.Success(map[string]interface{}{"delivery_id": headers.DeliveryID, "event": headers.Event})
}
