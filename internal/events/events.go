// Package events defines the engine's outbound notification contract.
// The engine emits transition, overdue, and batch events; external listeners
// subscribe over NATS. Publishing is fire-and-forget: failures are logged and
// never roll back task state.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Subjects for published events.
const (
	SubjectTaskTransitioned = "veriflow.task.transitioned"
	SubjectTaskOverdue      = "veriflow.task.overdue"
	SubjectBatchComplete    = "veriflow.batch.complete"
)

// TaskEvent describes one task state transition.
type TaskEvent struct {
	TaskID uuid.UUID `json:"task_id"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Actor  string    `json:"actor,omitempty"`
	At     time.Time `json:"at"`
}

// OverdueEvent flags an in-progress task past its due date. Overdue is a
// monitoring signal; the task does not auto-transition.
type OverdueEvent struct {
	TaskID     uuid.UUID `json:"task_id"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	DueDate    time.Time `json:"due_date"`
	At         time.Time `json:"at"`
}

// BatchEvent summarizes a finished batch run.
type BatchEvent struct {
	BatchID   uuid.UUID `json:"batch_id"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Errors    int       `json:"errors"`
	At        time.Time `json:"at"`
}

// Publisher emits engine events. Implementations must not block callers on
// delivery and must not surface delivery failures as errors.
type Publisher interface {
	TaskTransitioned(ctx context.Context, evt TaskEvent)
	TaskOverdue(ctx context.Context, evt OverdueEvent)
	BatchComplete(ctx context.Context, evt BatchEvent)
	Close()
}
