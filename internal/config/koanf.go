// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/dailyrecap/config.yaml",
	"/etc/dailyrecap/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		ArtifactStore: ArtifactStoreConfig{
			Path:          "/data/artifacts",
			ValueLogGC:    true,
			GCIntervalMin: 10,
		},
		JobStore: JobStoreConfig{
			Path:      "/data/jobs.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		JobQueue: JobQueueConfig{
			Enabled:          true,
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   true,
			StoreDir:         "/data/nats/jetstream",
			MaxMemory:        1 << 30,
			MaxStore:         10 << 30,
			StreamName:       "DAILY_RECAP_JOBS",
			SubjectPrefix:    "dailyrecap.jobs",
			DurableName:      "daily-recap-worker",
			AckWait:          30 * time.Second,
			MaxDeliver:       5,
			SubscribersCount: 2,
		},
		Scheduler: SchedulerConfig{
			DailyCron:     "0 6 * * *",
			Timezone:      "UTC",
			ProbeInterval: time.Hour,
			TickInterval:  30 * time.Second,
		},
		Worker: WorkerConfig{
			WorkerID:             "",
			StageTimeout:         30 * time.Second,
			CollaboratorRatePerS: 2,
			CollaboratorBurst:    5,
			TranscribeBatchSize:  4,
			JobBatchParallelism:  5,
		},
		Selector: SelectorConfig{
			ContentScoreWeight:     0.35,
			GitHubConfidenceWeight: 0.25,
			DurationWeight:         0.15,
			ViewsWeight:            0.15,
			TranscriptLengthWeight: 0.10,
			MaxDurationSeconds:     600,
			MaxViews:               10000,
			MaxTranscriptWords:     1000,
			PerHourCap:             2,
			ClipBudgetMin:          6,
			ClipBudgetMax:          12,
		},
		Drafter: DrafterConfig{
			Model:               "",
			Endpoint:            "",
			APIKey:              "",
			Temperature:         0.3,
			TopP:                0.9,
			Seed:                42,
			MaxTokens:           2000,
			RequestTimeout:      30 * time.Second,
			CircuitMaxFailures:  5,
			CircuitOpenDuration: time.Minute,
		},
		Render: RenderConfig{
			Layout:             "post",
			TrustedEmbedHosts:  []string{"clips.twitch.tv", "www.twitch.tv", "twitch.tv"},
			OutputPathTemplate: "blog-posts/{post_id}.md",
		},
		GitHub: GitHubConfig{
			Token:             "",
			WebhookSecret:     "",
			Repos:             []string{},
			PollInterval:      5 * time.Minute,
			CorrelationWindow: 2 * time.Hour,
		},
		Twitch: TwitchConfig{
			ClientID:       "",
			ClientSecret:   "",
			BroadcasterID:  "",
			PollInterval:   5 * time.Minute,
			DedupeWindow:   24 * time.Hour,
			RequestTimeout: 15 * time.Second,
		},
		Transcriber: TranscriberConfig{
			Endpoint:            "",
			APIKey:              "",
			RequestTimeout:      30 * time.Second,
			CircuitMaxFailures:  5,
			CircuitOpenDuration: time.Minute,
		},
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Security: SecurityConfig{
			AdminHMACSecret:         "",
			CollaboratorTokenSecret: "",
			CollaboratorTokenTTL:    60 * time.Second,
			RateLimitReqs:           100,
			RateLimitWindow:         time.Minute,
			RateLimitDisabled:       false,
			CORSOrigins:             []string{"*"},
			TrustedProxies:          []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
	"render.trusted_embed_hosts",
	"github.repos",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"artifact_store_path":             "artifact_store.path",
		"artifact_store_value_log_gc":     "artifact_store.value_log_gc",
		"artifact_store_gc_interval_mins":  "artifact_store.gc_interval_minutes",

		"job_store_path":       "job_store.path",
		"job_store_max_memory": "job_store.max_memory",
		"job_store_threads":    "job_store.threads",

		"job_queue_enabled":           "job_queue.enabled",
		"job_queue_url":               "job_queue.url",
		"job_queue_embedded":          "job_queue.embedded_server",
		"job_queue_store_dir":         "job_queue.store_dir",
		"job_queue_max_memory":        "job_queue.max_memory",
		"job_queue_max_store":         "job_queue.max_store",
		"job_queue_stream_name":       "job_queue.stream_name",
		"job_queue_subject_prefix":    "job_queue.subject_prefix",
		"job_queue_durable_name":      "job_queue.durable_name",
		"job_queue_ack_wait":          "job_queue.ack_wait",
		"job_queue_max_deliver":       "job_queue.max_deliver",
		"job_queue_subscribers_count": "job_queue.subscribers_count",

		"scheduler_daily_cron":     "scheduler.daily_cron",
		"scheduler_timezone":       "scheduler.timezone",
		"scheduler_probe_interval": "scheduler.probe_interval",
		"scheduler_tick_interval":  "scheduler.tick_interval",

		"worker_id":                      "worker.worker_id",
		"worker_stage_timeout":           "worker.stage_timeout",
		"worker_collaborator_rate":       "worker.collaborator_rate_per_second",
		"worker_collaborator_burst":      "worker.collaborator_burst",
		"worker_transcribe_batch_size":   "worker.transcribe_batch_size",
		"worker_job_batch_parallelism":   "worker.job_batch_parallelism",

		"selector_content_score_weight":     "selector.content_score_weight",
		"selector_github_confidence_weight": "selector.github_confidence_weight",
		"selector_duration_weight":          "selector.duration_weight",
		"selector_views_weight":             "selector.views_weight",
		"selector_transcript_length_weight": "selector.transcript_length_weight",
		"selector_max_duration_seconds":     "selector.max_duration_seconds",
		"selector_max_views":                "selector.max_views",
		"selector_max_transcript_words":     "selector.max_transcript_words",
		"selector_per_hour_cap":             "selector.per_hour_cap",
		"selector_clip_budget_min":          "selector.clip_budget_min",
		"selector_clip_budget_max":          "selector.clip_budget_max",

		"drafter_model":                "drafter.model",
		"drafter_endpoint":             "drafter.endpoint",
		"drafter_api_key":              "drafter.api_key",
		"drafter_temperature":          "drafter.temperature",
		"drafter_top_p":                "drafter.top_p",
		"drafter_seed":                 "drafter.seed",
		"drafter_max_tokens":           "drafter.max_tokens",
		"drafter_request_timeout":      "drafter.request_timeout",
		"drafter_circuit_max_failures": "drafter.circuit_max_failures",
		"drafter_circuit_open_duration": "drafter.circuit_open_duration",

		"render_layout":               "render.layout",
		"render_trusted_embed_hosts":  "render.trusted_embed_hosts",
		"render_output_path_template": "render.output_path_template",

		"github_token":              "github.token",
		"github_webhook_secret":     "github.webhook_secret",
		"github_repos":              "github.repos",
		"github_poll_interval":      "github.poll_interval",
		"github_correlation_window": "github.correlation_window",

		"twitch_client_id":       "twitch.client_id",
		"twitch_client_secret":   "twitch.client_secret",
		"twitch_broadcaster_id":  "twitch.broadcaster_id",
		"twitch_poll_interval":   "twitch.poll_interval",
		"twitch_dedupe_window":   "twitch.dedupe_window",
		"twitch_request_timeout": "twitch.request_timeout",

		"transcriber_endpoint":              "transcriber.endpoint",
		"transcriber_api_key":               "transcriber.api_key",
		"transcriber_request_timeout":       "transcriber.request_timeout",
		"transcriber_circuit_max_failures":  "transcriber.circuit_max_failures",
		"transcriber_circuit_open_duration": "transcriber.circuit_open_duration",

		"http_port":   "server.port",
		"http_host":   "server.host",
		"http_timeout": "server.timeout",
		"environment": "server.environment",

		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		"admin_hmac_secret":            "security.admin_hmac_secret",
		"collaborator_token_secret":    "security.collaborator_token_secret",
		"collaborator_token_ttl":       "security.collaborator_token_ttl",
		"rate_limit_requests":          "security.rate_limit_reqs",
		"rate_limit_window":            "security.rate_limit_window",
		"disable_rate_limit":           "security.rate_limit_disabled",
		"cors_origins":                 "security.cors_origins",
		"trusted_proxies":              "security.trusted_proxies",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage (testing,
// hot-reload with caller-supplied mutex protection).
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability. The
// caller is responsible for mutex protection when accessing configuration
// during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
