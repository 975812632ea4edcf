// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"encoding/json"
	"time"
)

// JobStatus is a Job's lifecycle state.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// jobStatusTransitions enumerates the only permitted status moves:
// queued -> processing -> {completed|failed}.
var jobStatusTransitions = map[JobStatus]map[JobStatus]bool{
	JobQueued:     {JobProcessing: true},
	JobProcessing: {JobCompleted: true, JobFailed: true},
}

// CanTransition reports whether moving a job from -> to is legal.
func CanTransition(from, to JobStatus) bool {
	if from == to {
		return true
	}
	next, ok := jobStatusTransitions[from]
	return ok && next[to]
}

// JobProgress tracks a job's current pipeline stage.
type JobProgress struct {
	Step    string `json:"step"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// Pipeline stage names, in order.
const (
	StepFetchingContentItems = "fetching_content_items"
	StepBuildingManifest     = "building_manifest"
	StepAIContentJudgment    = "ai_content_judgment"
	StepPreparingResponse    = "preparing_response"
	StepCompleting           = "completing"
)

// PipelineSteps is the ordered list of stages a daily job passes through.
var PipelineSteps = []string{
	StepFetchingContentItems,
	StepBuildingManifest,
	StepAIContentJudgment,
	StepPreparingResponse,
	StepCompleting,
}

// Job is a durable record of one unit of pipeline work.
type Job struct {
	JobID         string          `json:"job_id"`
	Status        JobStatus       `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	WorkerID      string          `json:"worker_id,omitempty"`
	Progress      JobProgress     `json:"progress"`
	RequestData   json.RawMessage `json:"request_data,omitempty"`
	Results       json.RawMessage `json:"results,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
}

// DefaultJobTTL is the default expiry window for a newly created job.
const DefaultJobTTL = 24 * time.Hour

// Expired reports whether the job has passed its expiry deadline as of now.
func (j Job) Expired(now time.Time) bool {
	return now.After(j.ExpiresAt)
}
