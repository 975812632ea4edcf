// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/dailyrecap/pipeline/internal/jobstore"
	"github.com/dailyrecap/pipeline/internal/models"
	"github.com/dailyrecap/pipeline/internal/validation"
)

// GenerateContent handles POST /api/content/generate: either runs the
// day/post_id pipeline synchronously and returns its result, or enqueues
// it and returns 202 with the job_id to poll.
func (h *Handler) GenerateContent(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)

	var req GenerateContentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		rw.ValidationError("malformed request body", nil)
		return
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		rw.ValidationError(ve.Error(), ve.ToAPIError().Details)
		return
	}

	day, err := time.Parse("2006-01-02", req.Day)
	if err != nil {
		rw.ValidationError("day must be YYYY-MM-DD", nil)
		return
	}

	requestData, err := json.Marshal(JobRequest{Day: req.Day, PostID: req.PostID})
	if err != nil {
		rw.InternalError(err)
		return
	}

	now := time.Now().UTC()
	job := &models.Job{
		JobID:       uuid.NewString(),
		Status:      models.JobQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(models.DefaultJobTTL),
		Progress:    models.JobProgress{Step: models.PipelineSteps[0], Current: 0, Total: len(models.PipelineSteps)},
		RequestData: requestData,
	}
	if err := h.Jobs.Create(r.Context(), job); err != nil {
		rw.InternalError(err)
		return
	}

	if !req.Async {
		if err := h.Dispatcher.ProcessJob(r.Context(), job.JobID, day, req.PostID); err != nil {
			rw.InternalError(err)
			return
		}
		result, err := h.Jobs.Get(r.Context(), job.JobID)
		if err != nil {
			rw.InternalError(err)
			return
		}
		rw.Success(result)
		return
	}

	if err := h.Queue.Enqueue(r.Context(), job.JobID); err != nil {
		rw.InternalError(err)
		return
	}
	rw.Accepted(map[string]interface{}{"job_id": job.JobID, "status": job.Status})
}

// JobStatus handles GET /api/jobs/{id}/status.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)
	jobID := chi.URLParam(r, "id")

	job, err := h.Jobs.Get(r.Context(), jobID)
	if err != nil {
		rw.NotFound("job not found: " + jobID)
		return
	}
	rw.Success(job)
}

// ListJobs handles GET /api/jobs: cursor-paginated, optionally filtered by
// status, ordered ascending or descending by job_id.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)

	req := ListJobsRequest{
		Cursor: r.URL.Query().Get("cursor"),
		Order:  r.URL.Query().Get("order"),
		Status: r.URL.Query().Get("status"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			req.Limit = n
		}
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		rw.ValidationError(ve.Error(), ve.ToAPIError().Details)
		return
	}

	result, err := h.Jobs.List(r.Context(), jobstore.ListQuery{
		Status:     models.JobStatus(req.Status),
		Cursor:     req.Cursor,
		Limit:      req.Limit,
		Descending: req.Order == "desc",
	})
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.SuccessPaginated(result.Jobs, PaginationMeta{Cursor: result.NextCursor, HasMore: result.HasMore, Limit: req.Limit})
}

// JobStats handles GET /api/jobs/stats: counts by status over the last 24h.
func (h *Handler) JobStats(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)
	stats, err := h.Jobs.AggregateStats(r.Context(), 24*time.Hour)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(stats)
}

// JobsCleanup handles POST /api/jobs/cleanup: deletes expired job records.
func (h *Handler) JobsCleanup(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)
	removed, err := h.Jobs.CleanupExpired(r.Context(), time.Now().UTC())
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(map[string]interface{}{"removed": removed})
}
