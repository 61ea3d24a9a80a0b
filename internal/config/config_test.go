/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("expected sqlite default backend, got %q", cfg.DBBackend)
	}
	if cfg.Forecast.MaxCapacity != 50 {
		t.Fatalf("expected default capacity 50, got %d", cfg.Forecast.MaxCapacity)
	}
	if cfg.Slots.Len() != 4 {
		t.Fatalf("expected 4 default slots, got %d", cfg.Slots.Len())
	}
	if cfg.SnapshotInterval != time.Hour {
		t.Fatalf("expected hourly snapshots, got %s", cfg.SnapshotInterval)
	}
	if cfg.ListenAddr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr())
	}
}

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("STALLCAST_DB_BACKEND", "postgres")
	t.Setenv("STALLCAST_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("STALLCAST_ENV", "production")
	t.Setenv("STALLCAST_EVENTBUS", "NATS")
	t.Setenv("STALLCAST_MAX_CAPACITY", "80")
	t.Setenv("STALLCAST_FORECAST_WEIGHTS", "5, 3, 1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production environment")
	}
	if cfg.EventBus != EventBusNATS {
		t.Fatalf("unexpected event bus %q", cfg.EventBus)
	}
	if cfg.Forecast.MaxCapacity != 80 {
		t.Fatalf("unexpected capacity %d", cfg.Forecast.MaxCapacity)
	}
	if got := cfg.Forecast.Weights; len(got) != 3 || got[0] != 5 || got[2] != 1 {
		t.Fatalf("unexpected weights %v", got)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"backend", "STALLCAST_DB_BACKEND", "oracle"},
		{"event bus", "STALLCAST_EVENTBUS", "kafka"},
		{"weights", "STALLCAST_FORECAST_WEIGHTS", "4,x"},
		{"ratios", "STALLCAST_MEDIUM_RATIO", "0.9"},
		{"snapshot interval", "STALLCAST_SNAPSHOT_INTERVAL_MINUTES", "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", tt.key, tt.val)
			}
		})
	}
}

func TestTuningFileThenEnvOverride(t *testing.T) {
	path := writeFile(t, "tuning.yaml", `
forecast:
  max_capacity: 30
  weights: [3, 2, 1]
  peak_threshold: 0.8
`)
	t.Setenv("STALLCAST_TUNING_FILE", path)
	t.Setenv("STALLCAST_PEAK_THRESHOLD", "0.6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Forecast.MaxCapacity != 30 {
		t.Fatalf("expected file capacity 30, got %d", cfg.Forecast.MaxCapacity)
	}
	if len(cfg.Forecast.Weights) != 3 {
		t.Fatalf("expected 3 weights, got %v", cfg.Forecast.Weights)
	}
	if cfg.Forecast.PeakThreshold != 0.6 {
		t.Fatalf("expected env to win, got %v", cfg.Forecast.PeakThreshold)
	}
	if cfg.Forecast.HighRatio != 0.75 {
		t.Fatalf("expected untouched default high ratio, got %v", cfg.Forecast.HighRatio)
	}
}

func TestLoadSlotCatalog(t *testing.T) {
	path := writeFile(t, "slots.yaml", `
slots:
  - key: "08:00"
    label: "Breakfast"
  - key: "12:00"
  - key: "08:00"
    label: "Duplicate"
`)

	catalog, err := LoadSlotCatalog(path)
	if err != nil {
		t.Fatalf("load slots: %v", err)
	}
	keys := catalog.Keys()
	if len(keys) != 2 || keys[0] != "08:00" || keys[1] != "12:00" {
		t.Fatalf("unexpected keys %v", keys)
	}

	empty := writeFile(t, "empty.yaml", "slots: []\n")
	if _, err := LoadSlotCatalog(empty); err == nil {
		t.Fatal("expected empty slot file to be rejected")
	}
	if _, err := LoadSlotCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing slot file to be rejected")
	}
}
