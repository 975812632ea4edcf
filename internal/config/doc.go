// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package config provides centralized configuration management for the daily
recap pipeline.

It handles loading, validation, and parsing of settings for every component
that makes up the pipeline: content collection, selection, drafting,
rendering, scheduling, job dispatch, and the admin API.

# Configuration Sources

Configuration is loaded in three layers, each overriding the last:

 1. Built-in struct defaults
 2. An optional YAML config file (CONFIG_PATH, or config.yaml in the
    working directory, or /etc/dailyrecap/config.yaml)
 3. Environment variables

# Configuration Structure

  - ArtifactStoreConfig: on-disk artifact blob store (manifests, rendered posts)
  - JobStoreConfig: embedded job/state database
  - JobQueueConfig: NATS JetStream job queue
  - SchedulerConfig: daily cron trigger and probe intervals
  - WorkerConfig: job dispatcher concurrency and collaborator rate limits
  - SelectorConfig: clip scoring weights and per-run clip budget
  - DrafterConfig: drafting LLM connection and sampling parameters
  - RenderConfig: Markdown rendering and embed allowlist
  - GitHubConfig: GitHub webhook secret, repos and correlation window
    (poll_interval is not read by any poller)
  - TwitchConfig: Twitch clip dedupe window and request timeout (clips
    arrive through the admin API; poll_interval is not read by any poller)
  - TranscriberConfig: transcription collaborator connection settings
  - ServerConfig: HTTP server bind address and environment
  - APIConfig: admin API pagination defaults
  - SecurityConfig: HMAC admin signing secret, collaborator token secret,
    rate limiting, CORS
  - LoggingConfig: log level and format

# Usage Example

	import "github.com/dailyrecap/pipeline/internal/config"

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatalf("failed to load config: %v", err)
	}

	fmt.Printf("listening on %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("next run: %s\n", cfg.Scheduler.DailyCron)

# Validation

Config.Validate is called automatically by LoadWithKoanf and checks, among
other things:

  - ARTIFACT_STORE_PATH, JOB_STORE_PATH, ADMIN_HMAC_SECRET are non-empty
  - ADMIN_HMAC_SECRET is at least 32 characters
  - SCHEDULER_DAILY_CRON parses as a valid five-field cron expression
  - the five selector weights sum to 1, within a small epsilon
  - SELECTOR_CLIP_BUDGET_MIN does not exceed SELECTOR_CLIP_BUDGET_MAX
  - DRAFTER_TEMPERATURE and DRAFTER_TOP_P fall within their valid ranges
  - HTTP_PORT is a valid TCP port
  - wildcard CORS origins are rejected when ENVIRONMENT=production
  - LOG_LEVEL and LOG_FORMAT are recognized values

# Thread Safety

The Config struct is immutable after LoadWithKoanf returns, making it safe
for concurrent access from multiple goroutines without synchronization.
*/
package config
