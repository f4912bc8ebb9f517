package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Pipeline.BatchSize != 1000 {
		t.Fatalf("unexpected default batch size: %d", cfg.Pipeline.BatchSize)
	}
	if cfg.Pipeline.SuspiciousMultiplier != 5.0 {
		t.Fatalf("unexpected default multiplier: %v", cfg.Pipeline.SuspiciousMultiplier)
	}
	if cfg.Pipeline.FutureDateTolerance != 24*time.Hour {
		t.Fatalf("unexpected default tolerance: %s", cfg.Pipeline.FutureDateTolerance)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
database:
  host: warehouse.internal
  port: 5433
pipeline:
  batch_size: 250
  workers: 8
  suspicious_multiplier: 3.5
  future_date_tolerance: 48h
  fallback_separator: ","
  max_retries: 5
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Database.Host != "warehouse.internal" || cfg.Database.Port != 5433 {
		t.Fatalf("database overrides not applied: %+v", cfg.Database)
	}
	if cfg.Pipeline.BatchSize != 250 || cfg.Pipeline.Workers != 8 {
		t.Fatalf("pipeline overrides not applied: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.SuspiciousMultiplier != 3.5 {
		t.Fatalf("multiplier override not applied: %v", cfg.Pipeline.SuspiciousMultiplier)
	}
	if cfg.Pipeline.FutureDateTolerance != 48*time.Hour {
		t.Fatalf("tolerance override not applied: %s", cfg.Pipeline.FutureDateTolerance)
	}
	if cfg.Pipeline.FallbackSeparator != "," {
		t.Fatalf("separator override not applied: %q", cfg.Pipeline.FallbackSeparator)
	}
	if cfg.Pipeline.MaxRetries != 5 {
		t.Fatalf("retry override not applied: %d", cfg.Pipeline.MaxRetries)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging overrides not applied: %+v", cfg.Logging)
	}
	// Unset keys keep their defaults.
	if cfg.Database.User == "" {
		t.Fatalf("unset keys must keep defaults")
	}
}
