package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.AppStore.Country != "us" {
		t.Errorf("expected country 'us', got %q", cfg.AppStore.Country)
	}
	if cfg.LLM.Model != "google/gemini-2.5-pro" {
		t.Errorf("expected model 'google/gemini-2.5-pro', got %q", cfg.LLM.Model)
	}
	if cfg.Freshness.AppListTTLDays != 2 {
		t.Errorf("expected app list TTL of 2 days, got %d", cfg.Freshness.AppListTTLDays)
	}
	if cfg.Freshness.ReviewDriftPercent != 10 {
		t.Errorf("expected review drift threshold of 10, got %v", cfg.Freshness.ReviewDriftPercent)
	}
	if cfg.Freshness.CompetitorDriftPct != 20 {
		t.Errorf("expected competitor drift threshold of 20, got %v", cfg.Freshness.CompetitorDriftPct)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
llm:
  model: anthropic/claude-sonnet-4
freshness:
  review_ttl_days: 5
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.LLM.Model != "anthropic/claude-sonnet-4" {
		t.Errorf("expected overridden model, got %q", cfg.LLM.Model)
	}
	if cfg.Freshness.ReviewTTLDays != 5 {
		t.Errorf("expected review TTL 5, got %d", cfg.Freshness.ReviewTTLDays)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Freshness.ScreenshotTTLDays != 7 {
		t.Errorf("expected default screenshot TTL 7, got %d", cfg.Freshness.ScreenshotTTLDays)
	}
	if cfg.LLM.APIKeyEnv != "OPENROUTER_API_KEY" {
		t.Errorf("expected default api_key_env, got %q", cfg.LLM.APIKeyEnv)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.AppStore.MaxReviewPages != 10 {
		t.Errorf("expected max_review_pages 10, got %d", cfg.AppStore.MaxReviewPages)
	}
}

func TestResolveConfigPathMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config path")
	}
}
