// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"time"

	"github.com/dailyrecap/pipeline/internal/scheduler"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateArtifactStore(); err != nil {
		return err
	}
	if err := c.validateJobStore(); err != nil {
		return err
	}
	if err := c.validateJobQueue(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateSelector(); err != nil {
		return err
	}
	if err := c.validateDrafter(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateArtifactStore() error {
	if c.ArtifactStore.Path == "" {
		return errMissingField("ARTIFACT_STORE_PATH")
	}
	return nil
}

func (c *Config) validateJobStore() error {
	if c.JobStore.Path == "" {
		return errMissingField("JOB_STORE_PATH")
	}
	if c.JobStore.Threads < 0 {
		return fmt.Errorf("JOB_STORE_THREADS must not be negative")
	}
	return nil
}

func (c *Config) validateJobQueue() error {
	if !c.JobQueue.Enabled {
		return nil
	}
	if c.JobQueue.URL == "" {
		return errMissingField("JOB_QUEUE_URL")
	}
	if err := validateNATSURL(c.JobQueue.URL); err != nil {
		return fmt.Errorf("JOB_QUEUE_URL: %w", err)
	}
	if c.JobQueue.MaxDeliver < 1 {
		return fmt.Errorf("JOB_QUEUE_MAX_DELIVER must be at least 1")
	}
	if c.JobQueue.SubscribersCount < 1 {
		return fmt.Errorf("JOB_QUEUE_SUBSCRIBERS_COUNT must be at least 1")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.DailyCron == "" {
		return errMissingField("SCHEDULER_DAILY_CRON")
	}
	if _, err := scheduler.ParseCron(c.Scheduler.DailyCron); err != nil {
		return fmt.Errorf("SCHEDULER_DAILY_CRON: %w", err)
	}
	return nil
}

func (c *Config) validateSelector() error {
	sum := c.Selector.ContentScoreWeight + c.Selector.GitHubConfidenceWeight +
		c.Selector.DurationWeight + c.Selector.ViewsWeight + c.Selector.TranscriptLengthWeight
	const epsilon = 0.01
	if sum < 1-epsilon || sum > 1+epsilon {
		return fmt.Errorf("selector weights must sum to 1 (+/- %.2f), got %.4f", epsilon, sum)
	}
	if c.Selector.ClipBudgetMin > c.Selector.ClipBudgetMax {
		return fmt.Errorf("SELECTOR_CLIP_BUDGET_MIN must not exceed SELECTOR_CLIP_BUDGET_MAX")
	}
	return nil
}

func (c *Config) validateDrafter() error {
	if c.Drafter.Temperature < 0 || c.Drafter.Temperature > 2 {
		return fmt.Errorf("DRAFTER_TEMPERATURE must be between 0 and 2")
	}
	if c.Drafter.TopP < 0 || c.Drafter.TopP > 1 {
		return fmt.Errorf("DRAFTER_TOP_P must be between 0 and 1")
	}
	if c.Drafter.MaxTokens < 1 {
		return fmt.Errorf("DRAFTER_MAX_TOKENS must be at least 1")
	}
	if c.Drafter.Endpoint != "" {
		if err := validateHTTPURL(c.Drafter.Endpoint, "DRAFTER_ENDPOINT"); err != nil {
			return err
		}
	}
	if c.Transcriber.Endpoint != "" {
		if err := validateHTTPURL(c.Transcriber.Endpoint, "TRANSCRIBER_ENDPOINT"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

// validateSecurity validates security configuration.
func (c *Config) validateSecurity() error {
	if err := c.validateAdminSecret(); err != nil {
		return err
	}
	if err := c.validateCORS(); err != nil {
		return err
	}
	return c.validateRateLimits()
}

func (c *Config) validateAdminSecret() error {
	if c.Security.AdminHMACSecret == "" {
		return errMissingField("ADMIN_HMAC_SECRET")
	}
	if len(c.Security.AdminHMACSecret) < 32 {
		return fmt.Errorf("ADMIN_HMAC_SECRET must be at least 32 characters")
	}
	return nil
}

// validateCORS rejects wildcard CORS in production, since the admin surface
// is signed via HMAC rather than cookies but the status page still reads
// cross-origin.
func (c *Config) validateCORS() error {
	if c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production. " +
			"Set specific origins: CORS_ORIGINS=https://status.example.com")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// Rate limit bounds.
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %s and %s", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// IsProduction reports whether Server.Environment is "production".
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// IsDevelopment reports whether Server.Environment is "development" (the default).
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "" || c.Server.Environment == "development"
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
}

var validLogFormats = map[string]bool{"json": true, "console": true}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic")
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}
