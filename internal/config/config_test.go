// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "testing"

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.AdminHMACSecret = "a-sufficiently-long-admin-hmac-secret-value"
	return cfg
}

func TestValidateAcceptsDefaultConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejectsMissingArtifactStorePath(t *testing.T) {
	cfg := validConfig()
	cfg.ArtifactStore.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty artifact store path")
	}
}

func TestValidateRejectsMissingAdminSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Security.AdminHMACSecret = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty admin secret")
	}
}

func TestValidateRejectsShortAdminSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Security.AdminHMACSecret = "too-short"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for short admin secret")
	}
}

func TestValidateRejectsInvalidCron(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.DailyCron = "not a cron"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid cron expression")
	}
}

func TestValidateRejectsSelectorWeightsNotSummingToOne(t *testing.T) {
	cfg := validConfig()
	cfg.Selector.ContentScoreWeight = 0.9
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for selector weights not summing to 1")
	}
}

func TestValidateRejectsInvertedClipBudget(t *testing.T) {
	cfg := validConfig()
	cfg.Selector.ClipBudgetMin = 20
	cfg.Selector.ClipBudgetMax = 5
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error when clip budget min exceeds max")
	}
}

func TestValidateRejectsOutOfRangeTemperature(t *testing.T) {
	cfg := validConfig()
	cfg.Drafter.Temperature = 5
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for out-of-range drafter temperature")
	}
}

func TestValidateRejectsInvalidServerPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid server port")
	}
}

func TestValidateRejectsWildcardCORSInProduction(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Environment = "production"
	cfg.Security.CORSOrigins = []string{"*"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for wildcard CORS in production")
	}
}

func TestValidateRejectsInvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid log level")
	}
}

func TestIsProductionAndIsDevelopment(t *testing.T) {
	cfg := validConfig()
	if !cfg.IsDevelopment() {
		t.Error("expected default environment to be development")
	}
	cfg.Server.Environment = "production"
	if !cfg.IsProduction() {
		t.Error("expected environment=production to report IsProduction")
	}
}
