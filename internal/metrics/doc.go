// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package metrics provides Prometheus metrics collection and export for the
daily recap pipeline.

# Overview

The package instruments:
  - Scheduler runs and next/last-run timestamps
  - Job queue depth and per-stage processing duration/errors
  - Content collection (Twitch clips, GitHub events, transcription)
  - Selector scoring and clip-budget exhaustion
  - Drafting LLM call duration, token usage, and errors
  - Collaborator circuit breaker state
  - Markdown rendering and posts persisted for review
  - Artifact store and job store operation duration
  - Admin API request counts, latency, rate limiting, and envelope rejections

# Metrics Endpoint

Metrics are exposed at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Usage Example

	import (
	    "github.com/dailyrecap/pipeline/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	func main() {
	    http.Handle("/metrics", promhttp.Handler())

	    start := time.Now()
	    err := dispatcher.ProcessJob(ctx, job)
	    metrics.RecordJobStage("completing", time.Since(start), err)
	}

# Cardinality Management

Stage, endpoint, and error-reason labels are drawn from small fixed sets
(job stages, admin routes, envelope rejection reasons) rather than
free-form strings, to keep time series counts bounded.

# Thread Safety

All metric recording functions are safe for concurrent use; the
Prometheus client library synchronizes internally.
*/
package metrics
