// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/models"
	"github.com/dailyrecap/pipeline/internal/transcribe"
	"github.com/dailyrecap/pipeline/internal/validation"
)

// transcribeBatchParallelism bounds concurrent TranscribeClip calls when
// draining a batch, so one slow collaborator call can't monopolize it.
const transcribeBatchParallelism = 5

// TranscribeClip handles POST /api/transcribe/clip: transcribe a single
// clip synchronously and return the resulting transcript summary.
func (h *Handler) TranscribeClip(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)

	var req TranscribeClipRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		rw.ValidationError("malformed request body", nil)
		return
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		rw.ValidationError(ve.Error(), ve.ToAPIError().Details)
		return
	}

	result, err := h.Transcriber.TranscribeClip(r.Context(), req.ClipID)
	if err != nil {
		writeTranscribeError(rw, err)
		return
	}
	rw.Success(result)
}

// TranscribeBatch handles POST /api/transcribe/batch: transcribe up to 50
// clips concurrently (bounded by transcribeBatchParallelism), reporting a
// per-clip outcome rather than failing the whole batch on one error.
func (h *Handler) TranscribeBatch(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)

	var req TranscribeBatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		rw.ValidationError("malformed request body", nil)
		return
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		rw.ValidationError(ve.Error(), ve.ToAPIError().Details)
		return
	}

	type outcome struct {
		ClipID string             `json:"clip_id"`
		Result *transcribe.Result `json:"result,omitempty"`
		Error  string             `json:"error,omitempty"`
	}
	outcomes := make([]outcome, len(req.ClipIDs))
	sem := make(chan struct{}, transcribeBatchParallelism)
	var wg sync.WaitGroup
	for i, clipID := range req.ClipIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, clipID string) {
			defer wg.Done()
			defer func() { <-sem }()
			result, err := h.Transcriber.TranscribeClip(r.Context(), clipID)
			if err != nil {
				outcomes[i] = outcome{ClipID: clipID, Error: err.Error()}
				return
			}
			outcomes[i] = outcome{ClipID: clipID, Result: result}
		}(i, clipID)
	}
	wg.Wait()

	rw.Success(outcomes)
}

// TranscribeStatus handles GET /api/transcribe/status/{id}: whether a
// transcript artifact has been persisted for the clip, without re-running
// transcription.
func (h *Handler) TranscribeStatus(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)

	clipID := chi.URLParam(r, "id")
	if !models.ValidClipID(clipID) {
		rw.ValidationError("clip_id fails lexicon check", nil)
		return
	}

	done, err := h.Artifacts.Exists(r.Context(), transcriptOKKey(clipID))
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(map[string]interface{}{"clip_id": clipID, "done": done})
}

func transcriptOKKey(clipID string) string { return "transcripts/" + clipID + ".ok" }

// writeTranscribeError maps an Orchestrator error to the right status and
// taxonomy code: ErrModelFailed becomes a 502 collaborator failure, and
// anything not one of the recoverable-failure sentinels a generic 500.
func writeTranscribeError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, transcribe.ErrAudioMissing):
		rw.NotFound(err.Error())
	case errors.Is(err, transcribe.ErrAudioTooLarge), errors.Is(err, transcribe.ErrInvalidWAV):
		rw.ValidationError(err.Error(), nil)
	case errors.Is(err, transcribe.ErrTranscriptEmpty):
		rw.SchemaError(err.Error(), nil)
	case errors.Is(err, transcribe.ErrModelFailed):
		rw.CollaboratorFailed(err.Error())
	default:
		rw.InternalError(err)
	}
}
