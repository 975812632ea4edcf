// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSchedulerRun(t *testing.T) {
	RecordSchedulerRun("cron")
	RecordSchedulerRun("manual")
}

func TestRecordJobStage(t *testing.T) {
	tests := []struct {
		name  string
		stage string
		err   error
	}{
		{"fetching succeeds", "fetching_content_items", nil},
		{"manifest build fails", "building_manifest", errors.New("boom")},
		{"completing succeeds", "completing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordJobStage(tt.stage, 10*time.Millisecond, tt.err)
		})
	}
}

func TestRecordJobCompletion(t *testing.T) {
	RecordJobCompletion("completed")
	RecordJobCompletion("failed")
}

func TestRecordClipCollected(t *testing.T) {
	RecordClipCollected(false)
	RecordClipCollected(true)
}

func TestRecordGitHubEvent(t *testing.T) {
	RecordGitHubEvent("poll", "PullRequestEvent")
	RecordGitHubEvent("webhook", "PushEvent")
}

func TestRecordTranscription(t *testing.T) {
	RecordTranscription(2*time.Second, nil)
	RecordTranscription(time.Second, errors.New("timeout"))
}

func TestRecordSelectorRun(t *testing.T) {
	RecordSelectorRun(40, 9, false)
	RecordSelectorRun(5, 5, true)
}

func TestRecordDraftGeneration(t *testing.T) {
	RecordDraftGeneration(3*time.Second, 1200, nil, "")
	RecordDraftGeneration(30*time.Second, 0, errors.New("timeout"), "timeout")
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	RecordCircuitBreakerTransition("drafter", 0, 2)
	RecordCircuitBreakerTransition("transcriber", 2, 1)
	RecordCircuitBreakerTransition("drafter", 1, 0)
}

func TestStateLabel(t *testing.T) {
	cases := map[int]string{0: "closed", 1: "half_open", 2: "open", 99: "open"}
	for state, want := range cases {
		if got := stateLabel(state); got != want {
			t.Errorf("stateLabel(%d) = %q, want %q", state, got, want)
		}
	}
}

func TestRecordRender(t *testing.T) {
	RecordRender(50 * time.Millisecond)
}

func TestRecordPullRequestOpened(t *testing.T) {
	RecordPullRequestOpened()
}

func TestRecordArtifactPut(t *testing.T) {
	RecordArtifactPut(5*time.Millisecond, 2048)
}

func TestRecordJobStoreQuery(t *testing.T) {
	RecordJobStoreQuery("get", time.Millisecond)
	RecordJobStoreQuery("complete", 2*time.Millisecond)
}

func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		method, endpoint, status string
		duration                 time.Duration
	}{
		{"GET", "/healthz", "200", 2 * time.Millisecond},
		{"POST", "/admin/content/generate", "202", 25 * time.Millisecond},
		{"POST", "/admin/webhook/github", "401", time.Millisecond},
	}
	for _, tt := range tests {
		RecordAPIRequest(tt.method, tt.endpoint, tt.status, tt.duration)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	TrackActiveRequest(false)
	TrackActiveRequest(false)
}

func TestRecordRateLimitHit(t *testing.T) {
	RecordRateLimitHit("/admin/twitch/clips")
}

func TestRecordEnvelopeRejection(t *testing.T) {
	for _, reason := range []string{"bad_signature", "replayed_nonce", "stale_timestamp", "missing_headers"} {
		RecordEnvelopeRejection(reason)
	}
}

func TestUpdateJobQueueDepth(t *testing.T) {
	for _, depth := range []int64{0, 5, 20, 0} {
		UpdateJobQueueDepth(depth)
	}
}

func TestUpdateSchedulerNextRun(t *testing.T) {
	UpdateSchedulerNextRun(time.Date(2026, 7, 31, 6, 0, 0, 0, time.UTC))
}

func TestConcurrentMetricRecording(t *testing.T) {
	var wg sync.WaitGroup
	const goroutines = 50
	const perGoroutine = 20

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				RecordJobStage("drafting", time.Millisecond, nil)
				RecordAPIRequest("GET", "/healthz", "200", time.Millisecond)
				TrackActiveRequest(true)
				TrackActiveRequest(false)
			}
		}()
	}
	wg.Wait()
}

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		SchedulerRunsTotal,
		SchedulerNextRunTimestamp,
		SchedulerLastRunTimestamp,
		JobsEnqueuedTotal,
		JobsCompletedTotal,
		JobStageDuration,
		JobStageErrors,
		JobQueueDepth,
		ClipsCollectedTotal,
		GitHubEventsCollectedTotal,
		TranscriptionDuration,
		TranscriptionErrors,
		SelectorCandidatesScored,
		SelectorClipsSelected,
		SelectorBudgetExhaustedTotal,
		DraftGenerationDuration,
		DraftGenerationErrors,
		DraftTokensUsed,
		CircuitBreakerState,
		CircuitBreakerTransitions,
		RenderDuration,
		PullRequestsOpenedTotal,
		ArtifactStorePutDuration,
		ArtifactStoreBytesWritten,
		JobStoreQueryDuration,
		APIRequestsTotal,
		APIRequestDuration,
		APIActiveRequests,
		APIRateLimitHits,
		AdminEnvelopeRejectionsTotal,
		AppInfo,
		AppUptime,
	}

	for _, c := range collectors {
		ch := make(chan *prometheus.Desc, 10)
		c.Describe(ch)
		close(ch)

		count := 0
		for range ch {
			count++
		}
		if count == 0 {
			t.Errorf("metric %T has no descriptors", c)
		}
	}
}

func TestMetricGathering(t *testing.T) {
	RecordJobStage("drafting", time.Millisecond, nil)
	RecordAPIRequest("GET", "/healthz", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("lint error (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("metric lint problem: %s", p.Text)
	}
}

func BenchmarkRecordJobStage(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordJobStage("drafting", 10*time.Millisecond, nil)
	}
}

func BenchmarkRecordAPIRequest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordAPIRequest("GET", "/healthz", "200", 2*time.Millisecond)
	}
}

func BenchmarkTrackActiveRequest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		TrackActiveRequest(true)
		TrackActiveRequest(false)
	}
}
