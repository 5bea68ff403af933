package batch

import (
	"context"
	"fmt"

	"github.com/veriflowhq/veriflow/internal/tasks"
)

// Processor decides the review outcome for one claimed task. Implementations
// receive the task already assigned to the batch reviewer and must leave it
// in a consistent state: completed, rejected, or released back to the queue.
type Processor interface {
	Process(ctx context.Context, reviewer string, task *tasks.Task) (Outcome, error)
}

// AutoAccept completes tasks whose extraction is trustworthy enough to pass
// without field-level review and releases everything else back to the queue
// for a human reviewer.
type AutoAccept struct {
	store     tasks.System
	threshold float64
}

// NewAutoAccept builds an auto-accept processor. Tasks at or above threshold
// confidence with no flagged anomalies are completed as-is.
func NewAutoAccept(store tasks.System, threshold float64) *AutoAccept {
	return &AutoAccept{store: store, threshold: threshold}
}

func (p *AutoAccept) Process(ctx context.Context, reviewer string, task *tasks.Task) (Outcome, error) {
	if task.AIConfidence >= p.threshold && len(task.Anomalies) == 0 {
		completed, err := p.store.Complete(ctx, task.ID, reviewer, tasks.CompleteCommand{})
		if err != nil {
			return Outcome{}, fmt.Errorf("complete %s: %w", task.ID, err)
		}
		return Outcome{Status: OutcomeCompleted, Score: completed.QualityScore}, nil
	}

	if _, err := p.store.Release(ctx, task.ID, reviewer); err != nil {
		return Outcome{}, fmt.Errorf("release %s: %w", task.ID, err)
	}
	return Outcome{Status: OutcomeSkipped}, nil
}
