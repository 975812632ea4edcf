// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the administrative HTTP surface: clip ingestion,
// transcription triggers, deduplication bookkeeping, content generation,
// job inspection, and the GitHub webhook receiver. Every route documented
// here is signed by internal/security.AdminEnvelope except the GitHub
// webhook, which is signed by the caller instead.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/artifactstore"
	"github.com/dailyrecap/pipeline/internal/cache"
	"github.com/dailyrecap/pipeline/internal/errtrack"
	"github.com/dailyrecap/pipeline/internal/jobstore"
	"github.com/dailyrecap/pipeline/internal/models"
	"github.com/dailyrecap/pipeline/internal/security"
	"github.com/dailyrecap/pipeline/internal/transcribe"
)

// ArtifactStore is the subset of internal/artifactstore.Store the API
// surface touches directly, for clip/audio artifacts that have no
// dedicated manager package.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string, custom map[string]string) error
	Get(ctx context.Context, key string) (*artifactstore.Object, error)
	Head(ctx context.Context, key string) (*artifactstore.Metadata, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix, cursor string, limit int) (*artifactstore.Page, error)
}

// JobStore is the subset of internal/jobstore.Store the API surface needs.
type JobStore interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, jobID string) (*models.Job, error)
	List(ctx context.Context, q jobstore.ListQuery) (*jobstore.ListResult, error)
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
	AggregateStats(ctx context.Context, window time.Duration) (*jobstore.Stats, error)
}

// JobQueue hands a queued job ID to the worker dispatcher.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Dispatcher runs a job's pipeline stages synchronously, used for the
// synchronous form of POST /api/content/generate.
type Dispatcher interface {
	ProcessJob(ctx context.Context, jobID string, day time.Time, postID string) error
}

// Transcriber drives the transcription orchestrator for a single clip.
type Transcriber interface {
	TranscribeClip(ctx context.Context, clipID string) (*transcribe.Result, error)
}

// EventStore records an inbound GitHub webhook delivery.
type EventStore interface {
	StoreEvent(ctx context.Context, id string, eventType models.EventType, repository, action string, payload json.RawMessage) error
}

// ContentItems is the subset of internal/contentitem.Manager the API
// surface uses to seed a lifecycle record for a newly stored clip.
type ContentItems interface {
	Store(ctx context.Context, item models.ContentItem) (*models.ContentItem, error)
}

// CollaboratorProbe reports whether a collaborator (GitHub, Twitch,
// drafter, transcriber) is reachable, backing GET /validate-*.
type CollaboratorProbe interface {
	Ping(ctx context.Context) error
}

// Handler holds every dependency the admin HTTP surface calls into. All
// fields are narrow interfaces so handlers can be tested against fakes
// without standing up the concrete stores.
type Handler struct {
	Artifacts   ArtifactStore
	Jobs        JobStore
	Queue       JobQueue
	Dispatcher  Dispatcher
	Transcriber Transcriber
	Events      EventStore
	Items       ContentItems
	Dedup       cache.DeduplicationCache
	Probes      map[string]CollaboratorProbe
	Webhook     *security.GitHubWebhookVerifier
	Tracker     *errtrack.Tracker

	startTime time.Time
	version   string
}

// New builds a Handler. version is surfaced by GET /health. tracker may be
// nil; handlers fall back to logging-only error reporting in that case.
func New(
	artifacts ArtifactStore,
	jobs JobStore,
	queue JobQueue,
	dispatcher Dispatcher,
	transcriber Transcriber,
	eventStore EventStore,
	items ContentItems,
	dedup cache.DeduplicationCache,
	probes map[string]CollaboratorProbe,
	webhook *security.GitHubWebhookVerifier,
	tracker *errtrack.Tracker,
	version string,
) *Handler {
	return &Handler{
		Artifacts:   artifacts,
		Jobs:        jobs,
		Queue:       queue,
		Dispatcher:  dispatcher,
		Transcriber: transcriber,
		Events:      eventStore,
		Items:       items,
		Dedup:       dedup,
		Probes:      probes,
		Webhook:     webhook,
		Tracker:     tracker,
		startTime:   time.Now(),
		version:     version,
	}
}

// writer builds a ResponseWriter wired to this Handler's error tracker.
func (h *Handler) writer(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return NewResponseWriter(w, r, h.Tracker)
}
