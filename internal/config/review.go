package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvReviewStatsRefresh         = "VERIFLOW_REVIEW_STATS_REFRESH"
	EnvReviewSweepInterval        = "VERIFLOW_REVIEW_SWEEP_INTERVAL"
	EnvReviewWorkloadWindow       = "VERIFLOW_REVIEW_WORKLOAD_WINDOW"
	EnvReviewWorkloadRefresh      = "VERIFLOW_REVIEW_WORKLOAD_REFRESH"
	EnvReviewReviewerCapacity     = "VERIFLOW_REVIEW_REVIEWER_CAPACITY"
	EnvReviewBatchConcurrency     = "VERIFLOW_REVIEW_BATCH_CONCURRENCY"
	EnvReviewTaskEstimate         = "VERIFLOW_REVIEW_TASK_ESTIMATE"
	EnvReviewAutoAcceptConfidence = "VERIFLOW_REVIEW_AUTO_ACCEPT_CONFIDENCE"
)

// ReviewConfig holds the verification engine's tuning parameters.
type ReviewConfig struct {
	// StatsRefresh is how long a queue statistics snapshot is served
	// before being recomputed.
	StatsRefresh string `toml:"stats_refresh"`

	// SweepInterval is how often the overdue sweep runs.
	SweepInterval string `toml:"sweep_interval"`

	// WorkloadWindow bounds the completed-review rollup per reviewer.
	WorkloadWindow string `toml:"workload_window"`

	// WorkloadRefresh is how long a workload report is cached.
	WorkloadRefresh string `toml:"workload_refresh"`

	// ReviewerCapacity is the concurrent task limit used for utilization.
	ReviewerCapacity int `toml:"reviewer_capacity"`

	// BatchConcurrency is the default batch worker pool size.
	BatchConcurrency int `toml:"batch_concurrency"`

	// TaskEstimate seeds batch time-remaining projections.
	TaskEstimate string `toml:"task_estimate"`

	// AutoAcceptConfidence is the minimum extraction confidence for
	// batch auto-acceptance.
	AutoAcceptConfidence float64 `toml:"auto_accept_confidence"`
}

// StatsRefreshDuration returns StatsRefresh as a time.Duration.
func (c *ReviewConfig) StatsRefreshDuration() time.Duration {
	d, _ := time.ParseDuration(c.StatsRefresh)
	return d
}

// SweepIntervalDuration returns SweepInterval as a time.Duration.
func (c *ReviewConfig) SweepIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.SweepInterval)
	return d
}

// WorkloadWindowDuration returns WorkloadWindow as a time.Duration.
func (c *ReviewConfig) WorkloadWindowDuration() time.Duration {
	d, _ := time.ParseDuration(c.WorkloadWindow)
	return d
}

// WorkloadRefreshDuration returns WorkloadRefresh as a time.Duration.
func (c *ReviewConfig) WorkloadRefreshDuration() time.Duration {
	d, _ := time.ParseDuration(c.WorkloadRefresh)
	return d
}

// TaskEstimateDuration returns TaskEstimate as a time.Duration.
func (c *ReviewConfig) TaskEstimateDuration() time.Duration {
	d, _ := time.ParseDuration(c.TaskEstimate)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ReviewConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ReviewConfig) Merge(overlay *ReviewConfig) {
	if overlay.StatsRefresh != "" {
		c.StatsRefresh = overlay.StatsRefresh
	}
	if overlay.SweepInterval != "" {
		c.SweepInterval = overlay.SweepInterval
	}
	if overlay.WorkloadWindow != "" {
		c.WorkloadWindow = overlay.WorkloadWindow
	}
	if overlay.WorkloadRefresh != "" {
		c.WorkloadRefresh = overlay.WorkloadRefresh
	}
	if overlay.ReviewerCapacity != 0 {
		c.ReviewerCapacity = overlay.ReviewerCapacity
	}
	if overlay.BatchConcurrency != 0 {
		c.BatchConcurrency = overlay.BatchConcurrency
	}
	if overlay.TaskEstimate != "" {
		c.TaskEstimate = overlay.TaskEstimate
	}
	if overlay.AutoAcceptConfidence != 0 {
		c.AutoAcceptConfidence = overlay.AutoAcceptConfidence
	}
}

func (c *ReviewConfig) loadDefaults() {
	if c.StatsRefresh == "" {
		c.StatsRefresh = "30s"
	}
	if c.SweepInterval == "" {
		c.SweepInterval = "1m"
	}
	if c.WorkloadWindow == "" {
		c.WorkloadWindow = "24h"
	}
	if c.WorkloadRefresh == "" {
		c.WorkloadRefresh = "30s"
	}
	if c.ReviewerCapacity == 0 {
		c.ReviewerCapacity = 10
	}
	if c.BatchConcurrency == 0 {
		c.BatchConcurrency = 3
	}
	if c.TaskEstimate == "" {
		c.TaskEstimate = "5m"
	}
	if c.AutoAcceptConfidence == 0 {
		c.AutoAcceptConfidence = 0.95
	}
}

func (c *ReviewConfig) loadEnv() {
	if v := os.Getenv(EnvReviewStatsRefresh); v != "" {
		c.StatsRefresh = v
	}
	if v := os.Getenv(EnvReviewSweepInterval); v != "" {
		c.SweepInterval = v
	}
	if v := os.Getenv(EnvReviewWorkloadWindow); v != "" {
		c.WorkloadWindow = v
	}
	if v := os.Getenv(EnvReviewWorkloadRefresh); v != "" {
		c.WorkloadRefresh = v
	}
	if v := os.Getenv(EnvReviewReviewerCapacity); v != "" {
		if capacity, err := strconv.Atoi(v); err == nil {
			c.ReviewerCapacity = capacity
		}
	}
	if v := os.Getenv(EnvReviewBatchConcurrency); v != "" {
		if concurrency, err := strconv.Atoi(v); err == nil {
			c.BatchConcurrency = concurrency
		}
	}
	if v := os.Getenv(EnvReviewTaskEstimate); v != "" {
		c.TaskEstimate = v
	}
	if v := os.Getenv(EnvReviewAutoAcceptConfidence); v != "" {
		if confidence, err := strconv.ParseFloat(v, 64); err == nil {
			c.AutoAcceptConfidence = confidence
		}
	}
}

func (c *ReviewConfig) validate() error {
	for name, value := range map[string]string{
		"stats_refresh":    c.StatsRefresh,
		"sweep_interval":   c.SweepInterval,
		"workload_window":  c.WorkloadWindow,
		"workload_refresh": c.WorkloadRefresh,
		"task_estimate":    c.TaskEstimate,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid %s: must be positive, got %s", name, value)
		}
	}
	if c.ReviewerCapacity < 1 {
		return fmt.Errorf("invalid reviewer_capacity: %d", c.ReviewerCapacity)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("invalid batch_concurrency: %d", c.BatchConcurrency)
	}
	if c.AutoAcceptConfidence < 0 || c.AutoAcceptConfidence > 1 {
		return fmt.Errorf("invalid auto_accept_confidence: %f", c.AutoAcceptConfidence)
	}
	return nil
}
