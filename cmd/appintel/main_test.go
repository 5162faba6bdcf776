package main

import (
	"testing"

	"github.com/clayton/appintel/internal/config"
)

func TestApplyFlagOverridesCountry(t *testing.T) {
	defer func() { country = "" }()

	cfg := config.Default()
	if cfg.AppStore.Country != "us" {
		t.Fatalf("default country = %q", cfg.AppStore.Country)
	}

	country = "de"
	applyFlagOverrides(cfg)
	if cfg.AppStore.Country != "de" {
		t.Errorf("country = %q, want flag override applied", cfg.AppStore.Country)
	}

	country = ""
	fresh := config.Default()
	applyFlagOverrides(fresh)
	if fresh.AppStore.Country != "us" {
		t.Errorf("country = %q, empty flag must leave config alone", fresh.AppStore.Country)
	}
}
