// Eventspool - Durable Event Buffering and Batch Upload Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventspool

package eventspool

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ============================================================================
// Defaults Tests
// ============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BaseURL != "https://api.keen.io" {
		t.Errorf("BaseURL = %s", cfg.BaseURL)
	}
	if cfg.APIVersion != "3.0" {
		t.Errorf("APIVersion = %s", cfg.APIVersion)
	}
	if cfg.MaxEventsPerCollection != 1000 {
		t.Errorf("MaxEventsPerCollection = %d, want 1000", cfg.MaxEventsPerCollection)
	}
	if cfg.EvictBatch != 2 {
		t.Errorf("EvictBatch = %d, want 2", cfg.EvictBatch)
	}
	if cfg.UploadTimeout != 30*time.Second {
		t.Errorf("UploadTimeout = %s, want 30s", cfg.UploadTimeout)
	}
	if cfg.CacheRoot == "" {
		t.Error("CacheRoot is empty")
	}
}

func TestWithDefaultsFillsOnlyZeroFields(t *testing.T) {
	cfg := Config{
		ProjectID:              "p",
		MaxEventsPerCollection: 5,
	}.withDefaults()

	if cfg.MaxEventsPerCollection != 5 {
		t.Errorf("explicit capacity overwritten: %d", cfg.MaxEventsPerCollection)
	}
	if cfg.EvictBatch != 2 {
		t.Errorf("EvictBatch not defaulted: %d", cfg.EvictBatch)
	}
	if cfg.BaseURL != "https://api.keen.io" {
		t.Errorf("BaseURL not defaulted: %s", cfg.BaseURL)
	}
}

// ============================================================================
// Validation Tests
// ============================================================================

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults with project id", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing project id", mutate: func(c *Config) { c.ProjectID = "" }, wantErr: true},
		{name: "malformed base url", mutate: func(c *Config) { c.BaseURL = "not a url" }, wantErr: true},
		{name: "zero capacity", mutate: func(c *Config) { c.MaxEventsPerCollection = 0 }, wantErr: true},
		{name: "zero evict batch", mutate: func(c *Config) { c.EvictBatch = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ProjectID = "p"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("got %v, want ErrInvalidConfig", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("got %v, want nil", err)
			}
		})
	}
}

// ============================================================================
// Layered Loading Tests
// ============================================================================

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "project_id: from-file\nwrite_key: file-key\nmax_events_per_collection: 50\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	// Env overrides file.
	t.Setenv("EVENTSPOOL_WRITE_KEY", "env-key")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.ProjectID != "from-file" {
		t.Errorf("ProjectID = %s, want from-file", cfg.ProjectID)
	}
	if cfg.WriteKey != "env-key" {
		t.Errorf("WriteKey = %s, want env override", cfg.WriteKey)
	}
	if cfg.MaxEventsPerCollection != 50 {
		t.Errorf("MaxEventsPerCollection = %d, want 50", cfg.MaxEventsPerCollection)
	}
	// Untouched fields keep their defaults.
	if cfg.BaseURL != "https://api.keen.io" {
		t.Errorf("BaseURL = %s, want default", cfg.BaseURL)
	}
}

func TestLoadConfigMissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("EVENTSPOOL_PROJECT_ID", "from-env")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.ProjectID != "from-env" {
		t.Errorf("ProjectID = %s, want from-env", cfg.ProjectID)
	}
}

func TestLoadConfigValidatesResult(t *testing.T) {
	// No project id anywhere: validation must fail.
	if _, err := LoadConfig(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}
}
