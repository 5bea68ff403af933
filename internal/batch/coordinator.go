package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/veriflowhq/veriflow/internal/events"
	"github.com/veriflowhq/veriflow/internal/metrics"
	"github.com/veriflowhq/veriflow/internal/tasks"
)

// Coordinator executes batch runs over the task store with a bounded worker
// pool. Each worker claims one task, hands it to the processor, and records
// the outcome. At most one batch per task succeeds the claim; claim losers
// record a failure for that task and move on.
type Coordinator struct {
	store       tasks.System
	processor   Processor
	events      events.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	concurrency int
	estimate    time.Duration

	mu   sync.RWMutex
	runs map[uuid.UUID]*run
}

// New builds a batch coordinator. concurrency is the worker pool size for
// runs that do not set Options.MaxConcurrent; estimate seeds the per-task
// duration used for time-remaining projections before a run has observed
// completions.
func New(store tasks.System, processor Processor, pub events.Publisher, m *metrics.Metrics, logger *slog.Logger, concurrency int, estimate time.Duration) *Coordinator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Coordinator{
		store:       store,
		processor:   processor,
		events:      pub,
		metrics:     m,
		logger:      logger.With(slog.String("component", "batch")),
		concurrency: concurrency,
		estimate:    estimate,
		runs:        make(map[uuid.UUID]*run),
	}
}

// Run processes the given tasks and blocks until every dispatched task has
// finished. Cancelling ctx stops new dispatch; in-flight tasks are allowed to
// complete their transition so no task is left half-reviewed.
func (c *Coordinator) Run(ctx context.Context, ids []uuid.UUID, opts Options) (*Result, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: batch requires at least one task", tasks.ErrValidation)
	}
	opts.normalize(c.concurrency)

	var warning string
	if len(ids) > SizeGuideline {
		warning = fmt.Sprintf("batch size %d exceeds the recommended maximum of %d", len(ids), SizeGuideline)
		c.logger.Warn("oversized batch", slog.Int("size", len(ids)), slog.Int("guideline", SizeGuideline))
	}

	r := newRun(len(ids), opts.MaxConcurrent, c.estimate)
	c.register(r)
	defer c.unregister(r)

	// In-flight store operations must outlive ctx cancellation so a
	// claimed task is never abandoned mid-transition.
	work := context.WithoutCancel(ctx)

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxConcurrent)

	for _, id := range ids {
		if ctx.Err() != nil || (opts.PauseOnError && r.failed()) {
			r.skipRemaining(id)
			continue
		}

		g.Go(func() error {
			// Re-check after acquiring a worker slot: a failure or
			// cancellation may have landed while this task waited.
			if ctx.Err() != nil || (opts.PauseOnError && r.failed()) {
				r.skipRemaining(id)
				return nil
			}
			c.processOne(work, r, id, opts.Reviewer)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.close()

	result := r.result(warning)
	for id, outcome := range result.Outcomes {
		c.metrics.ObserveBatchOutcome(string(outcome.Status))
		if outcome.Status == OutcomeFailed {
			c.logger.Warn("batch task failed",
				slog.String("batch_id", result.BatchID.String()),
				slog.String("task_id", id.String()),
				slog.String("error", outcome.Error))
		}
	}

	c.events.BatchComplete(ctx, events.BatchEvent{
		BatchID:   result.BatchID,
		Total:     result.Total,
		Completed: result.Completed,
		Errors:    result.Errors,
		At:        result.FinishedAt,
	})

	c.logger.Info("batch finished",
		slog.String("batch_id", result.BatchID.String()),
		slog.Int("total", result.Total),
		slog.Int("completed", result.Completed),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", result.Errors),
		slog.Int("not_started", result.NotStarted))

	return result, nil
}

// Active reports a snapshot of every running batch.
func (c *Coordinator) Active() []Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()

	active := make([]Progress, 0, len(c.runs))
	for _, r := range c.runs {
		active = append(active, r.progress())
	}
	return active
}

// Progress reports a snapshot of a running batch.
func (c *Coordinator) Progress(id uuid.UUID) (Progress, error) {
	c.mu.RLock()
	r, ok := c.runs[id]
	c.mu.RUnlock()
	if !ok {
		return Progress{}, fmt.Errorf("%w: batch %s", tasks.ErrNotFound, id)
	}
	return r.progress(), nil
}

func (c *Coordinator) processOne(ctx context.Context, r *run, id uuid.UUID, reviewer string) {
	r.start(id)
	started := time.Now()

	outcome, err := c.claimAndProcess(ctx, id, reviewer)
	if err != nil {
		outcome = Outcome{Status: OutcomeFailed, Error: err.Error()}
	}

	r.finish(id, outcome, time.Since(started))
}

func (c *Coordinator) claimAndProcess(ctx context.Context, id uuid.UUID, reviewer string) (Outcome, error) {
	claimed, err := c.store.Claim(ctx, id, reviewer)
	if err != nil {
		return Outcome{}, fmt.Errorf("claim %s: %w", id, err)
	}
	return c.processor.Process(ctx, reviewer, claimed)
}

func (c *Coordinator) register(r *run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs[r.id] = r
}

func (c *Coordinator) unregister(r *run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.runs, r.id)
}
