package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	AppStore  AppStore  `yaml:"app_store"`
	LLM       LLM       `yaml:"llm"`
	Freshness Freshness `yaml:"freshness"`
	Output    Output    `yaml:"output"`
	Logging   Logging   `yaml:"logging"`
}

type AppStore struct {
	Country         string `yaml:"country"`
	MaxReviewPages  int    `yaml:"max_review_pages"`
	PageDelayMS     int    `yaml:"page_delay_ms"`
	AppDelayMS      int    `yaml:"app_delay_ms"`
	ScrapeDelayMS   int    `yaml:"scrape_delay_ms"`
	ScrapeRetries   int    `yaml:"scrape_retries"`
	RequestTimeoutS int    `yaml:"request_timeout_seconds"`
}

type LLM struct {
	Model           string  `yaml:"model"`
	AsoModel        string  `yaml:"aso_model"`
	ScreenshotModel string  `yaml:"screenshot_model"`
	Temperature     float64 `yaml:"temperature"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	BaseURL         string  `yaml:"base_url"`
}

// Freshness holds the cache-validity policy. The TTLs and drift thresholds
// are deliberate policy knobs carried over from production use, not tuning
// suggestions.
type Freshness struct {
	AppListTTLDays     int     `yaml:"app_list_ttl_days"`
	ReviewTTLDays      int     `yaml:"review_ttl_days"`
	AnalysisTTLDays    int     `yaml:"analysis_ttl_days"`
	ScreenshotTTLDays  int     `yaml:"screenshot_ttl_days"`
	AsoTTLDays         int     `yaml:"aso_ttl_days"`
	ReviewDriftPercent float64 `yaml:"review_drift_percent"`
	CompetitorDriftPct float64 `yaml:"competitor_drift_percent"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for appintel.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "appintel")
}

// DataDir returns the XDG data directory for appintel.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "appintel")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/appintel/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'appintel init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	cfg, _ := parse(nil)
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		AppStore: AppStore{
			Country:         "us",
			MaxReviewPages:  10,
			PageDelayMS:     1000,
			AppDelayMS:      1000,
			ScrapeDelayMS:   2000,
			ScrapeRetries:   3,
			RequestTimeoutS: 10,
		},
		LLM: LLM{
			Model:           "google/gemini-2.5-pro",
			AsoModel:        "google/gemini-3-flash-preview",
			ScreenshotModel: "google/gemini-2.5-pro",
			Temperature:     0.7,
			APIKeyEnv:       "OPENROUTER_API_KEY",
			BaseURL:         "https://openrouter.ai/api/v1",
		},
		Freshness: Freshness{
			AppListTTLDays:     2,
			ReviewTTLDays:      3,
			AnalysisTTLDays:    3,
			ScreenshotTTLDays:  7,
			AsoTTLDays:         7,
			ReviewDriftPercent: 10,
			CompetitorDriftPct: 20,
		},
		Logging: Logging{Level: "INFO"},
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// APIKey reads the LLM credential from the configured environment variable.
func (c *Config) APIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}

// RequestTimeout returns the per-HTTP-call timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.AppStore.RequestTimeoutS) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
