// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/dailyrecap/pipeline/internal/api"
	"github.com/dailyrecap/pipeline/internal/jobqueue"
	"github.com/dailyrecap/pipeline/internal/jobstore"
	"github.com/dailyrecap/pipeline/internal/models"
)

// dailyJobSpawner creates and enqueues the scheduler's daily job, mirroring
// api.Handler.GenerateContent's async path so the scheduled and
// HTTP-triggered entry points produce identical job records.
type dailyJobSpawner struct {
	jobs  *jobstore.Store
	queue *jobqueue.Publisher
}

func newDailyJobSpawner(jobs *jobstore.Store, queue *jobqueue.Publisher) *dailyJobSpawner {
	return &dailyJobSpawner{jobs: jobs, queue: queue}
}

// SpawnDailyJob creates a queued job for forDay and hands it to the job
// queue. The post ID is derived from the date so re-runs for the same day
// are identifiable, not deduplicated (the worker's manifest reuse handles
// idempotency).
func (s *dailyJobSpawner) SpawnDailyJob(ctx context.Context, forDay time.Time) (string, error) {
	postID := forDay.Format("2006-01-02")
	requestData, err := json.Marshal(api.JobRequest{Day: postID, PostID: postID})
	if err != nil {
		return "", fmt.Errorf("scheduler: marshal job request: %w", err)
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
	if err := s.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("scheduler: create job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, job.JobID); err != nil {
		return "", fmt.Errorf("scheduler: enqueue job: %w", err)
	}
	return job.JobID, nil
}

// multiProbe checks every registered collaborator probe in turn, returning
// the first failure. It backs scheduler.CredentialProbe.
type multiProbe struct {
	probes map[string]api.CollaboratorProbe
}

func newMultiProbe(probes map[string]api.CollaboratorProbe) *multiProbe {
	return &multiProbe{probes: probes}
}

func (m *multiProbe) Probe(ctx context.Context) error {
	for name, probe := range m.probes {
		if err := probe.Ping(ctx); err != nil {
			return fmt.Errorf("scheduler: %s probe failed: %w", name, err)
		}
	}
	return nil
}
