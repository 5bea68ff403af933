// Package queue implements the verification task queue: dispatch ordering of
// claimable tasks, the read-mostly statistics snapshot, and the overdue sweep.
// The queue holds no authoritative state; everything derives from snapshots
// read from the task record store.
package queue

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriflowhq/veriflow/internal/events"
	"github.com/veriflowhq/veriflow/internal/metrics"
	"github.com/veriflowhq/veriflow/internal/scoring"
	"github.com/veriflowhq/veriflow/internal/tasks"
	"github.com/veriflowhq/veriflow/pkg/lifecycle"
)

// PendingFilters narrows the pending queue view. Nil fields are ignored.
// Severity matches tasks carrying at least one anomaly of that severity.
type PendingFilters struct {
	Status   *tasks.Status     `json:"status,omitempty"`
	Priority *tasks.Priority   `json:"priority,omitempty"`
	Severity *scoring.Severity `json:"severity,omitempty"`
}

// Service coordinates queue reads over the task record store.
type Service struct {
	store   tasks.System
	events  events.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger

	statsRefresh time.Duration
	sweepEvery   time.Duration

	mu         sync.RWMutex
	statsSnap  *tasks.Stats
	statsAt    time.Time
	statsFor   string
}

// New creates a queue service. statsRefresh bounds the staleness of the
// Stats snapshot; sweepEvery is the overdue sweep interval.
func New(
	store tasks.System,
	publisher events.Publisher,
	meters *metrics.Metrics,
	logger *slog.Logger,
	statsRefresh, sweepEvery time.Duration,
) *Service {
	return &Service{
		store:        store,
		events:       publisher,
		metrics:      meters,
		logger:       logger.With("system", "queue"),
		statsRefresh: statsRefresh,
		sweepEvery:   sweepEvery,
	}
}

// Pending returns the claimable tasks in dispatch order: priority descending,
// ties broken by due date ascending, further ties by task ID for determinism.
func (s *Service) Pending(ctx context.Context, filters PendingFilters) ([]tasks.Task, error) {
	pending, err := s.store.Pending(ctx)
	if err != nil {
		return nil, err
	}

	filtered := pending[:0]
	for _, t := range pending {
		if matches(&t, filters) {
			filtered = append(filtered, t)
		}
	}

	slices.SortFunc(filtered, Compare)
	return filtered, nil
}

// Assign claims a task for a reviewer through the store's atomic update.
// Exactly one of any set of racing callers wins.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, reviewer string) (*tasks.Task, error) {
	return s.store.Claim(ctx, id, reviewer)
}

// Stats returns the queue statistics snapshot, recomputing it when older
// than the refresh interval. The snapshot is eventually consistent with
// concurrent assignments; callers must tolerate that staleness.
func (s *Service) Stats(ctx context.Context, reviewer string) (*tasks.Stats, error) {
	s.mu.RLock()
	if s.statsSnap != nil && s.statsFor == reviewer && time.Since(s.statsAt) < s.statsRefresh {
		snap := *s.statsSnap
		s.mu.RUnlock()
		return &snap, nil
	}
	s.mu.RUnlock()

	snap, err := s.store.Stats(ctx, reviewer)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.statsSnap = snap
	s.statsAt = time.Now()
	s.statsFor = reviewer
	s.mu.Unlock()

	s.metrics.SetQueueDepth(string(tasks.StatusPending), snap.PendingTasks)
	s.metrics.SetQueueDepth(string(tasks.StatusInProgress), snap.InProgressTasks)
	s.metrics.SetQueueDepth(string(tasks.StatusEscalated), snap.EscalatedTasks)
	s.metrics.SetQueueDepth("overdue", snap.OverdueTasks)

	result := *snap
	return &result, nil
}

// Start registers the overdue sweep with the lifecycle coordinator. The
// sweep emits monitoring events for in-progress tasks past their due date;
// it never transitions them.
func (s *Service) Start(lc *lifecycle.Coordinator) {
	lc.OnShutdown(func() {
		ticker := time.NewTicker(s.sweepEvery)
		defer ticker.Stop()

		for {
			select {
			case <-lc.Context().Done():
				return
			case <-ticker.C:
				s.SweepOverdue(lc.Context())
			}
		}
	})
}

// SweepOverdue emits a task.overdue event for every in-progress task past
// its due date at the time of the sweep.
func (s *Service) SweepOverdue(ctx context.Context) {
	overdue, err := s.store.Overdue(ctx)
	if err != nil {
		s.logger.Warn("overdue sweep failed", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, t := range overdue {
		s.events.TaskOverdue(ctx, events.OverdueEvent{
			TaskID:     t.ID,
			AssignedTo: deref(t.AssignedTo),
			DueDate:    t.DueDate,
			At:         now,
		})
	}

	if len(overdue) > 0 {
		s.logger.Info("overdue sweep", "overdue", len(overdue))
	}
}

// Compare orders tasks for dispatch. Negative means a dispatches before b.
func Compare(a, b tasks.Task) int {
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return rb - ra
	}
	if c := a.DueDate.Compare(b.DueDate); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

func matches(t *tasks.Task, f PendingFilters) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Severity != nil {
		found := false
		for _, a := range t.Anomalies {
			if a.Severity == *f.Severity {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
