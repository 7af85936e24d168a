package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"bad codec", func(c *Config) { c.VideoCodec = "libaom-av1" }, ErrInvalidCodec},
		{"bad preset", func(c *Config) { c.Preset = "turbo" }, ErrInvalidPreset},
		{"crf too low", func(c *Config) { c.CRF = 10 }, ErrInvalidCRF},
		{"crf too high", func(c *Config) { c.CRF = 40 }, ErrInvalidCRF},
		{"bad bitrate fraction", func(c *Config) { c.TargetBitrateReduction = 1.5 }, ErrInvalidFraction},
		{"zero workers", func(c *Config) { c.MaxWorkers = 0 }, ErrInvalidWorkers},
		{"zero threshold", func(c *Config) { c.ThresholdGB = 0 }, ErrInvalidThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error wrapping %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNeedsSegmentation(t *testing.T) {
	cfg := Default()
	cfg.SegmentationThresholdGB = 10
	cfg.DurationThresholdMinutes = 60

	if cfg.NeedsSegmentation(5, 120) {
		t.Error("expected no segmentation when size threshold not met")
	}
	if cfg.NeedsSegmentation(20, 30) {
		t.Error("expected no segmentation when duration threshold not met")
	}
	if !cfg.NeedsSegmentation(20, 120) {
		t.Error("expected segmentation when both thresholds met")
	}
}

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.VideoCodec != DefaultVideoCodec {
		t.Errorf("expected default codec, got %s", cfg.VideoCodec)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file to be created: %v", err)
	}
}

func TestLoadReadsExistingAndToleratesUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	raw := map[string]any{
		"video_codec":     "libx264",
		"crf":             20,
		"unknown_field":   "ignored",
		"max_workers":     8,
		"threshold_gb":    10.0,
		"segment_duration_seconds": 600,
	}
	data, _ := json.Marshal(raw)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.VideoCodec != "libx264" {
		t.Errorf("expected libx264, got %s", cfg.VideoCodec)
	}
	if cfg.CRF != 20 {
		t.Errorf("expected CRF 20, got %d", cfg.CRF)
	}
	if cfg.MaxWorkers != 8 {
		t.Errorf("expected MaxWorkers 8, got %d", cfg.MaxWorkers)
	}
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.CRF = 28
	if err := Save(cfg, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.CRF != 28 {
		t.Errorf("expected CRF 28 after roundtrip, got %d", loaded.CRF)
	}
}

func TestDefaultPathRespectsXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdgcfg")
	got := DefaultPath()
	want := filepath.Join("/tmp/xdgcfg", "videocomp", "config.json")
	if got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}
