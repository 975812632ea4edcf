// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package worker implements the Worker Dispatcher (C13): it pulls a job off
// the queue, advances it through the five pipeline stages named in
// and persists the final rendered artifact.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/dailyrecap/pipeline/internal/drafter"
	"github.com/dailyrecap/pipeline/internal/manifest"
	"github.com/dailyrecap/pipeline/internal/metrics"
	"github.com/dailyrecap/pipeline/internal/models"
	"github.com/dailyrecap/pipeline/internal/render"
)

// JobStore is the subset of the job state store the dispatcher needs.
type JobStore interface {
	Get(ctx context.Context, jobID string) (*models.Job, error)
	UpdateStatus(ctx context.Context, jobID string, to models.JobStatus, workerID string) error
	UpdateProgress(ctx context.Context, jobID string, progress models.JobProgress) error
	Complete(ctx context.Context, jobID string, results json.RawMessage) error
	Fail(ctx context.Context, jobID string, errMsg string) error
}

// ManifestBuilder is the subset of the manifest builder the dispatcher needs.
type ManifestBuilder interface {
	Build(ctx context.Context, day time.Time, postID string) (*models.Manifest, error)
}

// Drafter is the subset of the drafter the dispatcher needs.
type Drafter interface {
	GenerateDraft(ctx context.Context, m models.Manifest, generatedAt time.Time) (*drafter.Result, error)
}

// ArtifactStore is the subset of the artifact store the dispatcher needs to
// persist the final manifest and rendered post.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string, custom map[string]string) error
}

// MarshalManifest serializes a manifest for persistence; callers supply
// this so the dispatcher doesn't depend directly on a JSON library choice.
type MarshalManifest func(m models.Manifest) ([]byte, error)

// Config bounds the dispatcher's per-call behavior.
type Config struct {
	// WorkerID identifies this worker in job records.
	WorkerID string
	// StageTimeout bounds the manifest build and drafting calls; rendering
	// and artifact writes run without it. Defaults to 30s.
	StageTimeout time.Duration
	// Layout is the front-matter layout name passed to the renderer.
	Layout string
}

// DefaultConfig holds the default 30s external-call timeout.
func DefaultConfig(workerID string) Config {
	return Config{WorkerID: workerID, StageTimeout: 30 * time.Second, Layout: "post"}
}

// Dispatcher advances a single job through its pipeline stages.
type Dispatcher struct {
	jobs      JobStore
	manifests ManifestBuilder
	drafter   Drafter
	artifacts ArtifactStore
	marshal   MarshalManifest
	limiter   *rate.Limiter
	config    Config
}

// New builds a Dispatcher. limiter bounds the rate of drafter calls; it is
// waited on only before the drafting stage (nil disables limiting).
func New(jobs JobStore, manifests ManifestBuilder, d Drafter, artifacts ArtifactStore, marshal MarshalManifest, limiter *rate.Limiter, config Config) *Dispatcher {
	if config.StageTimeout <= 0 {
		config.StageTimeout = 30 * time.Second
	}
	if config.Layout == "" {
		config.Layout = "post"
	}
	return &Dispatcher{
		jobs:      jobs,
		manifests: manifests,
		drafter:   d,
		artifacts: artifacts,
		marshal:   marshal,
		limiter:   limiter,
		config:    config,
	}
}

// ErrJobExpired is returned when a job's expires_at has already elapsed;
// the dispatcher does not advance an expired job.
var ErrJobExpired = fmt.Errorf("worker: job expired")

// ProcessJob advances jobID through the five pipeline stages, checking the
// job's expiry before each stage boundary (cooperative cancellation) and
// persisting progress as it goes. day is the editorial day the job covers
// and postID the manifest/post identifier to use.
func (d *Dispatcher) ProcessJob(ctx context.Context, jobID string, day time.Time, postID string) error {
	job, err := d.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("worker: load job: %w", err)
	}

	if err := d.jobs.UpdateStatus(ctx, jobID, models.JobProcessing, d.config.WorkerID); err != nil {
		return fmt.Errorf("worker: mark processing: %w", err)
	}

	m, err := d.runFetchAndBuild(ctx, jobID, job, day, postID)
	if err != nil {
		d.fail(ctx, jobID, err)
		return err
	}

	m, err = d.runDraft(ctx, jobID, job, *m)
	if err != nil {
		d.fail(ctx, jobID, err)
		return err
	}

	rendered, err := d.runRender(ctx, jobID, job, *m)
	if err != nil {
		d.fail(ctx, jobID, err)
		return err
	}

	if err := d.runComplete(ctx, jobID, job, *m, rendered); err != nil {
		d.fail(ctx, jobID, err)
		return err
	}

	metrics.RecordJobCompletion(string(models.JobCompleted))
	return nil
}

func (d *Dispatcher) checkNotExpired(ctx context.Context, job *models.Job) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if job.Expired(time.Now()) {
		return ErrJobExpired
	}
	return nil
}

func (d *Dispatcher) waitForLimiter(ctx context.Context) error {
	if d.limiter == nil {
		return nil
	}
	return d.limiter.Wait(ctx)
}

func (d *Dispatcher) runFetchAndBuild(ctx context.Context, jobID string, job *models.Job, day time.Time, postID string) (*models.Manifest, error) {
	if err := d.checkNotExpired(ctx, job); err != nil {
		return nil, err
	}
	if err := d.jobs.UpdateProgress(ctx, jobID, models.JobProgress{Step: models.StepFetchingContentItems, Current: 1, Total: 5}); err != nil {
		return nil, fmt.Errorf("worker: update progress: %w", err)
	}

	if err := d.jobs.UpdateProgress(ctx, jobID, models.JobProgress{Step: models.StepBuildingManifest, Current: 2, Total: 5}); err != nil {
		return nil, fmt.Errorf("worker: update progress: %w", err)
	}

	stageCtx, cancel := context.WithTimeout(ctx, d.config.StageTimeout)
	defer cancel()

	start := time.Now()
	m, err := d.manifests.Build(stageCtx, day, postID)
	metrics.RecordJobStage(models.StepBuildingManifest, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("worker: build manifest: %w", err)
	}
	return m, nil
}

func (d *Dispatcher) runDraft(ctx context.Context, jobID string, job *models.Job, m models.Manifest) (*models.Manifest, error) {
	if err := d.checkNotExpired(ctx, job); err != nil {
		return nil, err
	}
	if err := d.jobs.UpdateProgress(ctx, jobID, models.JobProgress{Step: models.StepAIContentJudgment, Current: 3, Total: 5}); err != nil {
		return nil, fmt.Errorf("worker: update progress: %w", err)
	}

	if err := d.waitForLimiter(ctx); err != nil {
		return nil, fmt.Errorf("worker: rate limit wait: %w", err)
	}

	stageCtx, cancel := context.WithTimeout(ctx, d.config.StageTimeout)
	defer cancel()

	start := time.Now()
	result, err := d.drafter.GenerateDraft(stageCtx, m, time.Now().UTC())
	metrics.RecordJobStage(models.StepAIContentJudgment, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("worker: generate draft: %w", err)
	}

	m.Draft = &result.Draft
	m.Gen = &result.Gen
	return &m, nil
}

func (d *Dispatcher) runRender(ctx context.Context, jobID string, job *models.Job, m models.Manifest) (*render.Result, error) {
	if err := d.checkNotExpired(ctx, job); err != nil {
		return nil, err
	}
	if err := d.jobs.UpdateProgress(ctx, jobID, models.JobProgress{Step: models.StepPreparingResponse, Current: 4, Total: 5}); err != nil {
		return nil, fmt.Errorf("worker: update progress: %w", err)
	}

	start := time.Now()
	result, err := render.Render(m, d.config.Layout)
	metrics.RecordRender(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("worker: render: %w", err)
	}
	return result, nil
}

func (d *Dispatcher) runComplete(ctx context.Context, jobID string, job *models.Job, m models.Manifest, rendered *render.Result) error {
	if err := d.checkNotExpired(ctx, job); err != nil {
		return err
	}
	if err := d.jobs.UpdateProgress(ctx, jobID, models.JobProgress{Step: models.StepCompleting, Current: 5, Total: 5}); err != nil {
		return fmt.Errorf("worker: update progress: %w", err)
	}

	manifestBody, err := d.marshal(m)
	if err != nil {
		return fmt.Errorf("worker: marshal manifest: %w", err)
	}
	if err := d.artifacts.Put(ctx, m.Key(), manifestBody, "application/json", nil); err != nil {
		return fmt.Errorf("worker: persist manifest: %w", err)
	}

	postKey := fmt.Sprintf("blog-posts/%s.md", m.PostID)
	if err := d.artifacts.Put(ctx, postKey, []byte(rendered.File), "text/markdown", nil); err != nil {
		return fmt.Errorf("worker: persist rendered post: %w", err)
	}
	metrics.RecordPullRequestOpened()

	results, err := d.marshal(m)
	if err != nil {
		return fmt.Errorf("worker: marshal results: %w", err)
	}
	if err := d.jobs.Complete(ctx, jobID, results); err != nil {
		return fmt.Errorf("worker: mark completed: %w", err)
	}
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, jobID string, cause error) {
	_ = d.jobs.Fail(ctx, jobID, cause.Error())
	metrics.RecordJobCompletion(string(models.JobFailed))
}

// Service wraps a Subscriber-driven consume loop as a long-running
// component, adapting the dispatcher's per-job ProcessJob call to whatever
// lifecycle runner (e.g. a supervisor tree) hosts it.
type Service struct {
	dispatcher *Dispatcher
	consume    func(ctx context.Context, handle func(ctx context.Context, jobID string) error) error
	resolveDay func(jobID string) (time.Time, string)
}

// NewService builds a Service. consume should be a jobqueue.Subscriber's
// Consume method; resolveDay maps a job ID to the (day, postID) pair the
// dispatcher processes it against.
func NewService(dispatcher *Dispatcher, consume func(ctx context.Context, handle func(ctx context.Context, jobID string) error) error, resolveDay func(jobID string) (time.Time, string)) *Service {
	return &Service{dispatcher: dispatcher, consume: consume, resolveDay: resolveDay}
}

// Serve implements a suture.Service-compatible Serve method.
func (s *Service) Serve(ctx context.Context) error {
	return s.consume(ctx, func(ctx context.Context, jobID string) error {
		day, postID := s.resolveDay(jobID)
		return s.dispatcher.ProcessJob(ctx, jobID, day, postID)
	})
}

// String implements fmt.Stringer for supervisor-tree logging.
func (s *Service) String() string {
	return "worker-dispatcher"
}
