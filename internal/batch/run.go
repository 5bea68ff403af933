package batch

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// run tracks the mutable state of one batch execution.
type run struct {
	id       uuid.UUID
	total    int
	workers  int
	estimate time.Duration

	mu         sync.Mutex
	startedAt  time.Time
	outcomes   map[uuid.UUID]Outcome
	current    map[uuid.UUID]struct{}
	completed  int
	skipped    int
	errors     int
	notStarted int
	elapsedSum time.Duration
	finished   int
	done       bool
}

func newRun(total, workers int, estimate time.Duration) *run {
	return &run{
		id:        uuid.New(),
		total:     total,
		workers:   workers,
		estimate:  estimate,
		startedAt: time.Now(),
		outcomes:  make(map[uuid.UUID]Outcome, total),
		current:   make(map[uuid.UUID]struct{}),
	}
}

func (r *run) start(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current[id] = struct{}{}
}

func (r *run) finish(id uuid.UUID, outcome Outcome, took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.current, id)
	r.outcomes[id] = outcome
	r.finished++
	r.elapsedSum += took

	switch outcome.Status {
	case OutcomeCompleted:
		r.completed++
	case OutcomeSkipped:
		r.skipped++
	case OutcomeFailed:
		r.errors++
	}
}

func (r *run) skipRemaining(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[id] = Outcome{Status: OutcomeNotStarted}
	r.notStarted++
}

func (r *run) failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors > 0
}

func (r *run) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
}

// avgDuration prefers the observed per-task average within this run and
// falls back to the configured estimate before any task has finished.
func (r *run) avgDuration() time.Duration {
	if r.finished == 0 {
		return r.estimate
	}
	return r.elapsedSum / time.Duration(r.finished)
}

func (r *run) progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := make([]uuid.UUID, 0, len(r.current))
	for id := range r.current {
		current = append(current, id)
	}

	remaining := r.total - r.finished - r.notStarted
	estimate := float64(remaining) * r.avgDuration().Seconds() / float64(r.workers)

	return Progress{
		BatchID:       r.id,
		Total:         r.total,
		Completed:     r.completed,
		Skipped:       r.skipped,
		Errors:        r.errors,
		Current:       current,
		TimeRemaining: estimate,
		Done:          r.done,
	}
}

func (r *run) result(warning string) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	return &Result{
		BatchID:    r.id,
		Total:      r.total,
		Completed:  r.completed,
		Skipped:    r.skipped,
		Errors:     r.errors,
		NotStarted: r.notStarted,
		Outcomes:   r.outcomes,
		Warning:    warning,
		Elapsed:    now.Sub(r.startedAt).Seconds(),
		StartedAt:  r.startedAt,
		FinishedAt: now,
	}
}
