// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/metrics"
	"github.com/dailyrecap/pipeline/internal/models"
	"github.com/dailyrecap/pipeline/internal/validation"
)

// dedupKey combines clip_id and file_hash, so a check counts as a duplicate
// only when both match an earlier check; the same clip_id with a different
// file_hash is a new key.
func dedupKey(clipID, fileHash string) string { return clipID + ":" + fileHash }

// DeduplicationCheck handles POST /api/deduplication/check: reports
// whether (clip_id, file_hash) has been seen before, recording it if not.
func (h *Handler) DeduplicationCheck(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)

	var req DeduplicationCheckRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		rw.ValidationError("malformed request body", nil)
		return
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		rw.ValidationError(ve.Error(), ve.ToAPIError().Details)
		return
	}

	duplicate := h.Dedup.IsDuplicate(dedupKey(req.ClipID, req.FileHash))
	metrics.RecordClipCollected(duplicate)
	rw.Success(map[string]interface{}{
		"clip_id":   req.ClipID,
		"file_hash": req.FileHash,
		"duplicate": duplicate,
	})
}

// DeduplicationFileInfo handles GET /api/deduplication/file-info/{id}: the
// stored audio artifact's size and content type, without downloading it.
func (h *Handler) DeduplicationFileInfo(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)

	clipID := chi.URLParam(r, "id")
	if !models.ValidClipID(clipID) {
		rw.ValidationError("clip_id fails lexicon check", nil)
		return
	}

	meta, err := h.Artifacts.Head(r.Context(), "audio/"+clipID+".wav")
	if err != nil {
		rw.NotFound("audio artifact not found: " + clipID)
		return
	}
	rw.Success(map[string]interface{}{
		"clip_id":      clipID,
		"size_bytes":   meta.Size,
		"content_type": meta.ContentType,
		"stored_at":    meta.StoredAt,
	})
}

// DeduplicationCleanup handles POST /api/deduplication/cleanup: sweeps
// expired entries from the dedup cache and reports how many were removed.
func (h *Handler) DeduplicationCleanup(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)
	removed := h.Dedup.CleanupExpired()
	rw.Success(map[string]interface{}{"removed": removed})
}
