package events

import (
	"context"
	"log/slog"
)

type logPublisher struct {
	logger *slog.Logger
}

// NewLog creates a publisher that records events to the structured log only.
// Used when NATS is disabled, and as the degraded mode in tests.
func NewLog(logger *slog.Logger) Publisher {
	return &logPublisher{logger: logger.With("system", "events")}
}

func (p *logPublisher) TaskTransitioned(ctx context.Context, evt TaskEvent) {
	p.logger.InfoContext(
		ctx, "task transitioned",
		"task_id", evt.TaskID,
		"from", evt.From,
		"to", evt.To,
		"actor", evt.Actor,
	)
}

func (p *logPublisher) TaskOverdue(ctx context.Context, evt OverdueEvent) {
	p.logger.WarnContext(
		ctx, "task overdue",
		"task_id", evt.TaskID,
		"assigned_to", evt.AssignedTo,
		"due_date", evt.DueDate,
	)
}

func (p *logPublisher) BatchComplete(ctx context.Context, evt BatchEvent) {
	p.logger.InfoContext(
		ctx, "batch complete",
		"batch_id", evt.BatchID,
		"total", evt.Total,
		"completed", evt.Completed,
		"errors", evt.Errors,
	)
}

func (p *logPublisher) Close() {}
