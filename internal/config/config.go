// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from environment variables
// and config files.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Storage: ArtifactStore (badger), JobStore (duckdb), JobQueue (NATS JetStream)
//  2. Pipeline: Scheduler, Worker, Selector, Drafter, Render
//  3. Collaborators: GitHub, Twitch, Transcriber (out-of-scope, interface-only)
//  4. Server & Security: Server, API, Security
//  5. Observability: Logging
//
// Example - Load configuration from environment:
//
//	cfg, err := config.LoadWithKoanf()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//
// Thread Safety:
// Config is immutable after LoadWithKoanf() and safe for concurrent read
// access from multiple goroutines.
type Config struct {
	ArtifactStore ArtifactStoreConfig `koanf:"artifact_store"`
	JobStore      JobStoreConfig      `koanf:"job_store"`
	JobQueue      JobQueueConfig      `koanf:"job_queue"`
	Scheduler     SchedulerConfig     `koanf:"scheduler"`
	Worker        WorkerConfig        `koanf:"worker"`
	Selector      SelectorConfig      `koanf:"selector"`
	Drafter       DrafterConfig       `koanf:"drafter"`
	Render        RenderConfig        `koanf:"render"`
	GitHub        GitHubConfig        `koanf:"github"`
	Twitch        TwitchConfig        `koanf:"twitch"`
	Transcriber   TranscriberConfig   `koanf:"transcriber"`
	Server        ServerConfig        `koanf:"server"`
	API           APIConfig           `koanf:"api"`
	Security      SecurityConfig      `koanf:"security"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ArtifactStoreConfig configures the badger-backed content-addressable
// artifact store (C1).
type ArtifactStoreConfig struct {
	Path          string `koanf:"path"`
	ValueLogGC    bool   `koanf:"value_log_gc"`
	GCIntervalMin int    `koanf:"gc_interval_minutes"`
}

// JobStoreConfig configures the embedded DuckDB job-state store (C2).
type JobStoreConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// JobQueueConfig configures the NATS JetStream-backed job queue (C3).
type JobQueueConfig struct {
	Enabled          bool          `koanf:"enabled"`
	URL              string        `koanf:"url"`
	EmbeddedServer   bool          `koanf:"embedded_server"`
	StoreDir         string        `koanf:"store_dir"`
	MaxMemory        int64         `koanf:"max_memory"`
	MaxStore         int64         `koanf:"max_store"`
	StreamName       string        `koanf:"stream_name"`
	SubjectPrefix    string        `koanf:"subject_prefix"`
	DurableName      string        `koanf:"durable_name"`
	AckWait          time.Duration `koanf:"ack_wait"`
	MaxDeliver       int           `koanf:"max_deliver"`
	SubscribersCount int           `koanf:"subscribers_count"`
}

// SchedulerConfig configures the daily cron trigger (C12).
type SchedulerConfig struct {
	DailyCron     string        `koanf:"daily_cron"`
	Timezone      string        `koanf:"timezone"`
	ProbeInterval time.Duration `koanf:"probe_interval"`
	TickInterval  time.Duration `koanf:"tick_interval"`
}

// WorkerConfig configures the job dispatcher (C13).
type WorkerConfig struct {
	WorkerID             string        `koanf:"worker_id"`
	StageTimeout         time.Duration `koanf:"stage_timeout"`
	CollaboratorRatePerS float64       `koanf:"collaborator_rate_per_second"`
	CollaboratorBurst    int           `koanf:"collaborator_burst"`
	TranscribeBatchSize  int           `koanf:"transcribe_batch_size"`
	JobBatchParallelism  int           `koanf:"job_batch_parallelism"`
}

// SelectorConfig configures content-item scoring and admission (C8).
type SelectorConfig struct {
	ContentScoreWeight     float64 `koanf:"content_score_weight"`
	GitHubConfidenceWeight float64 `koanf:"github_confidence_weight"`
	DurationWeight         float64 `koanf:"duration_weight"`
	ViewsWeight            float64 `koanf:"views_weight"`
	TranscriptLengthWeight float64 `koanf:"transcript_length_weight"`
	MaxDurationSeconds     int     `koanf:"max_duration_seconds"`
	MaxViews               int     `koanf:"max_views"`
	MaxTranscriptWords     int     `koanf:"max_transcript_words"`
	PerHourCap             int     `koanf:"per_hour_cap"`
	ClipBudgetMin          int     `koanf:"clip_budget_min"`
	ClipBudgetMax          int     `koanf:"clip_budget_max"`
}

// DrafterConfig configures the model-drafting stage (C10).
type DrafterConfig struct {
	Model               string        `koanf:"model"`
	Endpoint            string        `koanf:"endpoint"`
	APIKey              string        `koanf:"api_key"`
	Temperature         float64       `koanf:"temperature"`
	TopP                float64       `koanf:"top_p"`
	Seed                int64         `koanf:"seed"`
	MaxTokens           int           `koanf:"max_tokens"`
	RequestTimeout      time.Duration `koanf:"request_timeout"`
	CircuitMaxFailures  uint32        `koanf:"circuit_max_failures"`
	CircuitOpenDuration time.Duration `koanf:"circuit_open_duration"`
}

// RenderConfig configures document rendering (C11).
type RenderConfig struct {
	Layout             string   `koanf:"layout"`
	TrustedEmbedHosts  []string `koanf:"trusted_embed_hosts"`
	OutputPathTemplate string   `koanf:"output_path_template"`
}

// GitHubConfig configures the repository-hosting collaborator (event
// correlation, C6).
type GitHubConfig struct {
	Token             string        `koanf:"token"`
	WebhookSecret     string        `koanf:"webhook_secret"`
	Repos             []string      `koanf:"repos"`
	PollInterval      time.Duration `koanf:"poll_interval"`
	CorrelationWindow time.Duration `koanf:"correlation_window"`
}

// TwitchConfig configures the broadcast-platform collaborator (clip
// ingestion; arrives via the admin API's StoreClips route, not a poller).
type TwitchConfig struct {
	ClientID       string        `koanf:"client_id"`
	ClientSecret   string        `koanf:"client_secret"`
	BroadcasterID  string        `koanf:"broadcaster_id"`
	PollInterval   time.Duration `koanf:"poll_interval"`
	DedupeWindow   time.Duration `koanf:"dedupe_window"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// TranscriberConfig configures the out-of-scope transcription collaborator
// (C5).
type TranscriberConfig struct {
	Endpoint            string        `koanf:"endpoint"`
	APIKey              string        `koanf:"api_key"`
	RequestTimeout      time.Duration `koanf:"request_timeout"`
	CircuitMaxFailures  uint32        `koanf:"circuit_max_failures"`
	CircuitOpenDuration time.Duration `koanf:"circuit_open_duration"`
}

// ServerConfig configures the administrative/webhook HTTP surface (C6's
// webhook receiver and C14's admin routes).
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// APIConfig configures pagination defaults for list endpoints.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig configures the HMAC admin envelope and outbound
// collaborator token signing (C14).
type SecurityConfig struct {
	AdminHMACSecret         string        `koanf:"admin_hmac_secret"`
	CollaboratorTokenSecret string        `koanf:"collaborator_token_secret"`
	CollaboratorTokenTTL    time.Duration `koanf:"collaborator_token_ttl"`
	RateLimitReqs           int           `koanf:"rate_limit_reqs"`
	RateLimitWindow         time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled       bool          `koanf:"rate_limit_disabled"`
	CORSOrigins             []string      `koanf:"cors_origins"`
	TrustedProxies          []string      `koanf:"trusted_proxies"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// errMissingField builds a consistent "X is required" validation error.
func errMissingField(envVar string) error {
	return fmt.Errorf("%s is required", envVar)
}
