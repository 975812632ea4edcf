// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

func TestLoadWithKoanfAppliesDefaultsAndRequiresAdminSecret(t *testing.T) {
	t.Setenv("ADMIN_HMAC_SECRET", "")
	t.Setenv("CONFIG_PATH", "")
	if _, err := LoadWithKoanf(); err == nil {
		t.Error("expected validation error with no admin secret set")
	}
}

func TestLoadWithKoanfAppliesEnvOverrides(t *testing.T) {
	t.Setenv("ADMIN_HMAC_SECRET", "a-sufficiently-long-admin-hmac-secret-value")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SCHEDULER_DAILY_CRON", "0 7 * * *")
	t.Setenv("CONFIG_PATH", "")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Scheduler.DailyCron != "0 7 * * *" {
		t.Errorf("Scheduler.DailyCron = %q", cfg.Scheduler.DailyCron)
	}
}

func TestLoadWithKoanfLoadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "server:\n  port: 9999\nselector:\n  per_hour_cap: 3\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("ADMIN_HMAC_SECRET", "a-sufficiently-long-admin-hmac-secret-value")
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Selector.PerHourCap != 3 {
		t.Errorf("Selector.PerHourCap = %d, want 3", cfg.Selector.PerHourCap)
	}
}

func TestEnvTransformFuncMapsKnownKeys(t *testing.T) {
	cases := map[string]string{
		"ADMIN_HMAC_SECRET":    "security.admin_hmac_secret",
		"HTTP_PORT":            "server.port",
		"SCHEDULER_DAILY_CRON": "scheduler.daily_cron",
		"GITHUB_REPOS":         "github.repos",
		"LOG_LEVEL":            "logging.level",
	}
	for envKey, want := range cases {
		if got := envTransformFunc(envKey); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", envKey, got, want)
		}
	}
}

func TestEnvTransformFuncIgnoresUnknownKeys(t *testing.T) {
	if got := envTransformFunc("SOME_UNRELATED_VARIABLE"); got != "" {
		t.Errorf("envTransformFunc(unknown) = %q, want empty string", got)
	}
}

func TestProcessSliceFieldsSplitsCommaSeparatedString(t *testing.T) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if err := k.Set("security.cors_origins", "https://a.example.com, https://b.example.com"); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := processSliceFields(k); err != nil {
		t.Fatalf("processSliceFields: %v", err)
	}

	got := k.Strings("security.cors_origins")
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestProcessSliceFieldsIgnoresEmptyString(t *testing.T) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if err := k.Set("github.repos", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := processSliceFields(k); err != nil {
		t.Fatalf("processSliceFields: %v", err)
	}
}

func TestFindConfigFileReturnsEmptyWhenNoneExist(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	defer os.Chdir(cwd)

	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Setenv("CONFIG_PATH", "")

	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile() = %q, want empty", got)
	}
}

func TestFindConfigFilePrefersConfigPathEnvVar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}
}
