package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for explicitly named missing file")
	}

	// No path at all falls back to defaults when no config file exists.
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Tier != domain.TierCommunity {
		t.Errorf("expected community tier, got %s", cfg.Tier)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Repository.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", cfg.Repository.Driver)
	}
	if cfg.Cache.Type != "memory" {
		t.Errorf("expected memory cache, got %s", cfg.Cache.Type)
	}
	if cfg.EventBus.Type != "channel" {
		t.Errorf("expected channel bus, got %s", cfg.EventBus.Type)
	}
	if cfg.Pipeline.AnomalyThreshold != 2.5 {
		t.Errorf("expected anomaly threshold 2.5, got %v", cfg.Pipeline.AnomalyThreshold)
	}
	if cfg.Pipeline.TopAnomalies != 5 {
		t.Errorf("expected top anomalies 5, got %d", cfg.Pipeline.TopAnomalies)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kestrel.yaml")
	raw := []byte(`
tier: pro
server:
  port: 9090
pipeline:
  anomaly_threshold: 3.0
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Tier != domain.TierPro {
		t.Errorf("expected pro tier, got %s", cfg.Tier)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.AnomalyThreshold != 3.0 {
		t.Errorf("expected anomaly threshold 3.0, got %v", cfg.Pipeline.AnomalyThreshold)
	}

	// Pro tier switches the infrastructure defaults.
	if cfg.Repository.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %s", cfg.Repository.Driver)
	}
	if cfg.Cache.Type != "redis" {
		t.Errorf("expected redis cache, got %s", cfg.Cache.Type)
	}
	if cfg.EventBus.Type != "nats" {
		t.Errorf("expected nats bus, got %s", cfg.EventBus.Type)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("KESTREL_SERVER_PORT", "7070")
	t.Setenv("KESTREL_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("expected port 7070 from env, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level debug from env, got %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Config)
	}{
		{"BadTier", func(c *domain.Config) { c.Tier = "enterprise" }},
		{"BadPort", func(c *domain.Config) { c.Server.Port = 0 }},
		{"BadDriver", func(c *domain.Config) { c.Repository.Driver = "oracle" }},
		{"BadCacheType", func(c *domain.Config) { c.Cache.Type = "memcached" }},
		{"BadBusType", func(c *domain.Config) { c.EventBus.Type = "kafka" }},
		{"BadThreshold", func(c *domain.Config) { c.Pipeline.AnomalyThreshold = 0 }},
		{"BadTopN", func(c *domain.Config) { c.Pipeline.TopAnomalies = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := domain.DefaultConfig()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	t.Run("DefaultsAreValid", func(t *testing.T) {
		if err := Validate(domain.DefaultConfig()); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
		if err := Validate(domain.ProConfig()); err != nil {
			t.Errorf("pro config should validate: %v", err)
		}
	})
}

func TestLoadRuleDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	raw := []byte(`
rules:
  - id: big-amount
    field: amount
    operator: gt
    value: 10000
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	doc, err := LoadRuleDocument(path)
	if err != nil {
		t.Fatalf("LoadRuleDocument failed: %v", err)
	}

	rulesVal, ok := doc["rules"]
	if !ok {
		t.Fatal("expected rules key in document")
	}
	items, ok := rulesVal.([]any)
	if !ok {
		t.Fatalf("expected rules list, got %T", rulesVal)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(items))
	}

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := LoadRuleDocument(filepath.Join(dir, "absent.yaml")); err == nil {
			t.Error("expected error for missing rules file")
		}
	})
}
