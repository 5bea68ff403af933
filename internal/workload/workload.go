// Package workload derives per-reviewer utilization from the task store's
// activity rollups. Utilization is read-only telemetry for team leads;
// nothing here influences assignment.
package workload

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/veriflowhq/veriflow/internal/tasks"
)

// overloadThreshold is the utilization above which a reviewer is flagged.
const overloadThreshold = 0.9

// Reviewer is one reviewer's workload view.
type Reviewer struct {
	ReviewerID            string  `json:"reviewer_id"`
	CurrentTasks          int     `json:"current_tasks"`
	MaxCapacity           int     `json:"max_capacity"`
	Utilization           float64 `json:"utilization"`
	Overloaded            bool    `json:"overloaded"`
	CompletedToday        int     `json:"completed_today"`
	AccuracyRate          float64 `json:"accuracy_rate"`
	AverageProcessingTime float64 `json:"average_processing_time"`
}

// Report is a point-in-time team workload snapshot.
type Report struct {
	Reviewers      []Reviewer `json:"reviewers"`
	TotalCurrent   int        `json:"total_current"`
	TotalCompleted int        `json:"total_completed"`
	Overloaded     int        `json:"overloaded"`
	GeneratedAt    time.Time  `json:"generated_at"`
}

// Service aggregates reviewer workload from the task store. Reports are
// cached for the configured refresh interval since workload is advisory and
// need not reflect in-flight transitions.
type Service struct {
	store    tasks.System
	logger   *slog.Logger
	capacity int
	window   time.Duration
	refresh  time.Duration

	mu       sync.RWMutex
	snapshot *Report
	taken    time.Time
}

// New builds a workload service. capacity is the per-reviewer concurrent task
// limit used for utilization; window bounds the completed-review rollup.
func New(store tasks.System, logger *slog.Logger, capacity int, window, refresh time.Duration) *Service {
	return &Service{
		store:    store,
		logger:   logger.With(slog.String("component", "workload")),
		capacity: capacity,
		window:   window,
		refresh:  refresh,
	}
}

// Report returns the team workload, refreshing the cached snapshot when it
// is older than the refresh interval.
func (s *Service) Report(ctx context.Context) (*Report, error) {
	s.mu.RLock()
	if s.snapshot != nil && time.Since(s.taken) < s.refresh {
		snap := s.snapshot
		s.mu.RUnlock()
		return snap, nil
	}
	s.mu.RUnlock()

	activity, err := s.store.Workload(ctx, s.window)
	if err != nil {
		return nil, err
	}

	report := s.build(activity)

	s.mu.Lock()
	s.snapshot = report
	s.taken = time.Now()
	s.mu.Unlock()

	return report, nil
}

func (s *Service) build(activity []tasks.ReviewerActivity) *Report {
	report := &Report{
		Reviewers:   make([]Reviewer, 0, len(activity)),
		GeneratedAt: time.Now(),
	}

	for _, a := range activity {
		r := Reviewer{
			ReviewerID:            a.ReviewerID,
			CurrentTasks:          a.CurrentTasks,
			MaxCapacity:           s.capacity,
			Utilization:           float64(a.CurrentTasks) / float64(s.capacity),
			CompletedToday:        a.CompletedToday,
			AccuracyRate:          a.AccuracyRate,
			AverageProcessingTime: a.AverageProcessingTime,
		}
		r.Overloaded = r.Utilization > overloadThreshold

		report.Reviewers = append(report.Reviewers, r)
		report.TotalCurrent += r.CurrentTasks
		report.TotalCompleted += r.CompletedToday
		if r.Overloaded {
			report.Overloaded++
		}
	}

	slices.SortFunc(report.Reviewers, func(a, b Reviewer) int {
		return strings.Compare(a.ReviewerID, b.ReviewerID)
	})

	return report
}
