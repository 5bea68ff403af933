package config_test

import (
	"testing"
	"time"

	"github.com/veriflowhq/veriflow/internal/config"
)

func TestReviewConfigDefaults(t *testing.T) {
	cfg := config.ReviewConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.StatsRefreshDuration() != 30*time.Second {
		t.Errorf("StatsRefresh = %v, want 30s", cfg.StatsRefreshDuration())
	}
	if cfg.SweepIntervalDuration() != time.Minute {
		t.Errorf("SweepInterval = %v, want 1m", cfg.SweepIntervalDuration())
	}
	if cfg.WorkloadWindowDuration() != 24*time.Hour {
		t.Errorf("WorkloadWindow = %v, want 24h", cfg.WorkloadWindowDuration())
	}
	if cfg.ReviewerCapacity != 10 {
		t.Errorf("ReviewerCapacity = %d, want 10", cfg.ReviewerCapacity)
	}
	if cfg.BatchConcurrency != 3 {
		t.Errorf("BatchConcurrency = %d, want 3", cfg.BatchConcurrency)
	}
	if cfg.AutoAcceptConfidence != 0.95 {
		t.Errorf("AutoAcceptConfidence = %v, want 0.95", cfg.AutoAcceptConfidence)
	}
}

func TestReviewConfigEnvOverrides(t *testing.T) {
	t.Setenv(config.EnvReviewReviewerCapacity, "5")
	t.Setenv(config.EnvReviewSweepInterval, "5m")

	cfg := config.ReviewConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.ReviewerCapacity != 5 {
		t.Errorf("ReviewerCapacity = %d, want 5", cfg.ReviewerCapacity)
	}
	if cfg.SweepIntervalDuration() != 5*time.Minute {
		t.Errorf("SweepInterval = %v, want 5m", cfg.SweepIntervalDuration())
	}
}

func TestReviewConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ReviewConfig
	}{
		{"bad duration", config.ReviewConfig{StatsRefresh: "soon"}},
		{"zero sweep interval", config.ReviewConfig{SweepInterval: "0s"}},
		{"negative sweep interval", config.ReviewConfig{SweepInterval: "-1m"}},
		{"negative capacity", config.ReviewConfig{ReviewerCapacity: -1}},
		{"confidence above one", config.ReviewConfig{AutoAcceptConfidence: 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Finalize(); err == nil {
				t.Error("finalize succeeded, want error")
			}
		})
	}
}

func TestReviewConfigMerge(t *testing.T) {
	base := config.ReviewConfig{SweepInterval: "1m", ReviewerCapacity: 10}
	overlay := config.ReviewConfig{SweepInterval: "10m"}

	base.Merge(&overlay)

	if base.SweepInterval != "10m" {
		t.Errorf("SweepInterval = %s, want 10m", base.SweepInterval)
	}
	if base.ReviewerCapacity != 10 {
		t.Errorf("ReviewerCapacity = %d, want preserved 10", base.ReviewerCapacity)
	}
}
