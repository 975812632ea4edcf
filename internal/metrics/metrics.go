// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the daily recap pipeline: job dispatch,
// content collection, selection, drafting, rendering, and the admin API.

var (
	// Scheduler metrics
	SchedulerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Total number of scheduled daily recap runs triggered",
		},
		[]string{"trigger"}, // "cron", "manual"
	)

	SchedulerNextRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_next_run_timestamp",
			Help: "Unix timestamp of the next scheduled run",
		},
	)

	SchedulerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of the last triggered run",
		},
	)

	// Job queue / dispatcher metrics
	JobsEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued to the job queue",
		},
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs that finished processing",
		},
		[]string{"status"}, // "completed", "failed"
	)

	JobStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_stage_duration_seconds",
			Help:    "Duration of an individual job processing stage",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	JobStageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_stage_errors_total",
			Help: "Total number of job processing stage failures",
		},
		[]string{"stage"},
	)

	JobQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "job_queue_depth",
			Help: "Current number of jobs pending in the queue",
		},
	)

	// Content collection metrics
	ClipsCollectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clips_collected_total",
			Help: "Total number of Twitch clips seen by the deduplication check",
		},
		[]string{"result"}, // "new", "deduplicated"
	)

	GitHubEventsCollectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_events_collected_total",
			Help: "Total number of GitHub events ingested",
		},
		[]string{"source", "event_type"}, // source: "poll", "webhook"
	)

	TranscriptionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcription_duration_seconds",
			Help:    "Duration of clip transcription calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	TranscriptionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcription_errors_total",
			Help: "Total number of failed transcription calls",
		},
	)

	// Selector metrics
	SelectorCandidatesScored = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "selector_candidates_scored",
			Help:    "Number of content items scored per selection run",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		},
	)

	SelectorClipsSelected = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "selector_clips_selected",
			Help:    "Number of clips selected per run after budget and per-hour-cap filtering",
			Buckets: []float64{1, 3, 6, 9, 12, 15, 20},
		},
	)

	SelectorBudgetExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "selector_budget_exhausted_total",
			Help: "Total number of runs where the clip budget was exhausted before exhausting candidates",
		},
	)

	// Drafting metrics
	DraftGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "draft_generation_duration_seconds",
			Help:    "Duration of a drafting LLM call",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)

	DraftGenerationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_generation_errors_total",
			Help: "Total number of drafting LLM call failures",
		},
		[]string{"reason"}, // "collaborator_error", "malformed_response"
	)

	DraftTokensUsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "draft_tokens_used",
			Help:    "Number of tokens consumed per drafting call",
			Buckets: []float64{100, 250, 500, 1000, 1500, 2000, 3000},
		},
	)

	// Circuit breaker metrics (drafter / transcriber collaborators)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Rendering / PR metrics
	RenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "render_duration_seconds",
			Help:    "Duration of Markdown post rendering",
			Buckets: prometheus.DefBuckets,
		},
	)

	PullRequestsOpenedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pull_requests_opened_total",
			Help: "Total number of generated posts persisted as review artifacts",
		},
	)

	// Artifact store / job store metrics
	ArtifactStorePutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "artifact_store_put_duration_seconds",
			Help:    "Duration of artifact store write operations",
			Buckets: prometheus.DefBuckets,
		},
	)

	ArtifactStoreBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artifact_store_bytes_written_total",
			Help: "Total number of bytes written to the artifact store",
		},
	)

	JobStoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_store_query_duration_seconds",
			Help:    "Duration of job store queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Admin API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of admin API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Admin API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight admin API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	AdminEnvelopeRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_envelope_rejections_total",
			Help: "Total number of admin requests rejected by the signing envelope",
		},
		[]string{"reason"}, // "malformed_body", "signature", "nonce_replay"
	)

	// System metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordSchedulerRun records a scheduled or manually triggered run.
func RecordSchedulerRun(trigger string) {
	SchedulerRunsTotal.WithLabelValues(trigger).Inc()
	SchedulerLastRunTimestamp.Set(float64(time.Now().Unix()))
}

// RecordJobStage records the duration and outcome of a single job stage.
func RecordJobStage(stage string, duration time.Duration, err error) {
	JobStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		JobStageErrors.WithLabelValues(stage).Inc()
	}
}

// RecordJobCompletion records a job reaching a terminal status.
func RecordJobCompletion(status string) {
	JobsCompletedTotal.WithLabelValues(status).Inc()
}

// RecordClipCollected records the outcome of a clip deduplication check.
func RecordClipCollected(deduplicated bool) {
	if deduplicated {
		ClipsCollectedTotal.WithLabelValues("deduplicated").Inc()
		return
	}
	ClipsCollectedTotal.WithLabelValues("new").Inc()
}

// RecordGitHubEvent records a GitHub event ingested via poll or webhook.
func RecordGitHubEvent(source, eventType string) {
	GitHubEventsCollectedTotal.WithLabelValues(source, eventType).Inc()
}

// RecordTranscription records a transcription call outcome.
func RecordTranscription(duration time.Duration, err error) {
	TranscriptionDuration.Observe(duration.Seconds())
	if err != nil {
		TranscriptionErrors.Inc()
	}
}

// RecordSelectorRun records the shape of a single selection run.
func RecordSelectorRun(candidates, selected int, budgetExhausted bool) {
	SelectorCandidatesScored.Observe(float64(candidates))
	SelectorClipsSelected.Observe(float64(selected))
	if budgetExhausted {
		SelectorBudgetExhaustedTotal.Inc()
	}
}

// RecordDraftGeneration records a drafting LLM call outcome.
func RecordDraftGeneration(duration time.Duration, tokensUsed int, err error, reason string) {
	DraftGenerationDuration.Observe(duration.Seconds())
	if tokensUsed > 0 {
		DraftTokensUsed.Observe(float64(tokensUsed))
	}
	if err != nil {
		DraftGenerationErrors.WithLabelValues(reason).Inc()
	}
}

// RecordCircuitBreakerTransition records a collaborator circuit breaker state change.
func RecordCircuitBreakerTransition(name string, fromState, toState int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(toState))
	CircuitBreakerTransitions.WithLabelValues(name, stateLabel(fromState), stateLabel(toState)).Inc()
}

func stateLabel(state int) string {
	switch state {
	case 0:
		return "closed"
	case 1:
		return "half_open"
	default:
		return "open"
	}
}

// RecordRender records a Markdown rendering operation.
func RecordRender(duration time.Duration) {
	RenderDuration.Observe(duration.Seconds())
}

// RecordPullRequestOpened records a rendered post being persisted as a review
// artifact. The pipeline does not open a pull request itself.
func RecordPullRequestOpened() {
	PullRequestsOpenedTotal.Inc()
}

// RecordArtifactPut records an artifact store write.
func RecordArtifactPut(duration time.Duration, bytesWritten int) {
	ArtifactStorePutDuration.Observe(duration.Seconds())
	ArtifactStoreBytesWritten.Add(float64(bytesWritten))
}

// RecordJobStoreQuery records a job store query.
func RecordJobStoreQuery(operation string, duration time.Duration) {
	JobStoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAPIRequest records an admin API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight admin API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit records a rejected request due to rate limiting.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordEnvelopeRejection records an admin request rejected by the signing envelope.
func RecordEnvelopeRejection(reason string) {
	AdminEnvelopeRejectionsTotal.WithLabelValues(reason).Inc()
}

// UpdateJobQueueDepth sets the current job queue depth gauge.
func UpdateJobQueueDepth(depth int64) {
	JobQueueDepth.Set(float64(depth))
}

// UpdateSchedulerNextRun sets the next scheduled run timestamp gauge.
func UpdateSchedulerNextRun(next time.Time) {
	SchedulerNextRunTimestamp.Set(float64(next.Unix()))
}
