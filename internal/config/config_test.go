package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 8080 {
		t.Fatalf("expected default port 8080 got %d", cfg.AppPort)
	}
	if cfg.AnalyzeTimeout != 120*time.Second {
		t.Fatalf("expected 120s analyze timeout got %s", cfg.AnalyzeTimeout)
	}
	if cfg.MaxImageBytes != 2<<20 || cfg.MaxImageDimension != 1920 {
		t.Fatalf("unexpected image bounds: %d bytes, %d px", cfg.MaxImageBytes, cfg.MaxImageDimension)
	}
	if cfg.Language != "id" || cfg.MaxSongs != 5 || cfg.MaxTopics != 8 {
		t.Fatalf("unexpected analysis defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SNAPSIGHT_PORT", "9090")
	t.Setenv("SNAPSIGHT_ANALYZE_TIMEOUT", "30s")
	t.Setenv("SNAPSIGHT_MAX_IMAGE_BYTES", "1048576")
	t.Setenv("SNAPSIGHT_LANGUAGE", "en")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 9090 {
		t.Fatalf("expected port override got %d", cfg.AppPort)
	}
	if cfg.AnalyzeTimeout != 30*time.Second {
		t.Fatalf("expected timeout override got %s", cfg.AnalyzeTimeout)
	}
	if cfg.MaxImageBytes != 1<<20 {
		t.Fatalf("expected byte override got %d", cfg.MaxImageBytes)
	}
	if cfg.Language != "en" {
		t.Fatalf("expected language override got %s", cfg.Language)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SNAPSIGHT_PORT", "not-a-number")
	t.Setenv("SNAPSIGHT_ANALYZE_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 8080 || cfg.AnalyzeTimeout != 120*time.Second {
		t.Fatalf("expected fallbacks for malformed values, got %+v", cfg)
	}
}
