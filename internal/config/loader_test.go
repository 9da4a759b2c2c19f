package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Orchestrator.Thresholds["intent_detection"] != 0.85 {
		t.Errorf("expected default intent threshold 0.85, got %v", cfg.Orchestrator.Thresholds["intent_detection"])
	}
	if !cfg.Orchestrator.RequireCorroboration {
		t.Error("expected require_corroboration default true")
	}
	if len(cfg.Intents) == 0 {
		t.Error("expected default intents")
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.yaml")
	yaml := `
server:
  port: "9090"
storage:
  driver: memory
orchestrator:
  turn_deadline: 10s
  thresholds:
    intent_detection: 0.5
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("expected memory driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Orchestrator.TurnDeadline != 10*time.Second {
		t.Errorf("expected 10s turn deadline, got %v", cfg.Orchestrator.TurnDeadline)
	}
	if cfg.Orchestrator.Thresholds["intent_detection"] != 0.5 {
		t.Errorf("expected yaml threshold 0.5, got %v", cfg.Orchestrator.Thresholds["intent_detection"])
	}
}

func TestLoadFromEnvOverride(t *testing.T) {
	t.Setenv("PARLEY_PORT", "7070")
	t.Setenv("PARLEY_STORAGE_DRIVER", "memory")
	t.Setenv("PARLEY_TOOL_TIMEOUT", "2s")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected env port 7070, got %q", cfg.Server.Port)
	}
	if cfg.Tools.Timeout != 2*time.Second {
		t.Errorf("expected env tool timeout 2s, got %v", cfg.Tools.Timeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }},
		{"postgres without dsn", func(c *Config) { c.Postgres.DSN = "" }},
		{"zero max parallel", func(c *Config) { c.Tools.MaxParallel = 0 }},
		{"zero tool timeout", func(c *Config) { c.Tools.Timeout = 0 }},
		{"zero turn deadline", func(c *Config) { c.Orchestrator.TurnDeadline = 0 }},
		{"zero conflict retries", func(c *Config) { c.Orchestrator.ConflictRetries = 0 }},
		{"threshold out of range", func(c *Config) { c.Orchestrator.Thresholds["slot_filling"] = 1.5 }},
		{"intent without keywords", func(c *Config) { c.Intents[0].Keywords = nil }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			if err := validate(&cfg); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
