package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veriflowhq/veriflow/pkg/pagination"
)

// System is the task record store: the single shared mutable resource of the
// verification engine. Every state transition is one atomic operation against
// it, so two concurrent claims on the same task cannot both succeed.
type System interface {
	Handler() *Handler

	// Create registers a task submitted by the extraction pipeline.
	Create(ctx context.Context, cmd SubmitCommand) (*Task, error)

	// Find returns a single task. Fails with ErrNotFound for unknown IDs.
	Find(ctx context.Context, id uuid.UUID) (*Task, error)

	// List returns a filtered, paginated page of tasks.
	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Task], error)

	// Pending returns a snapshot of every claimable task (pending or
	// escalated). Ordering is the queue's concern.
	Pending(ctx context.Context) ([]Task, error)

	// Overdue returns the in-progress tasks past their due date. Overdue is
	// a monitoring signal; these tasks are not transitioned.
	Overdue(ctx context.Context) ([]Task, error)

	// Claim atomically assigns a claimable task to a reviewer. Exactly one
	// of any set of concurrent callers succeeds; the rest fail with
	// ErrAlreadyAssigned.
	Claim(ctx context.Context, id uuid.UUID, reviewer string) (*Task, error)

	// Complete finalizes a review, computing and persisting the quality score.
	Complete(ctx context.Context, id uuid.UUID, reviewer string, cmd CompleteCommand) (*Task, error)

	// Reject declines a review with a required reason.
	Reject(ctx context.Context, id uuid.UUID, reviewer, reason string) (*Task, error)

	// Release returns an in-progress task to the pending queue undecided.
	Release(ctx context.Context, id uuid.UUID, reviewer string) (*Task, error)

	// Escalate hands an in-progress task off for senior review.
	Escalate(ctx context.Context, id uuid.UUID, reviewer, reason string) (*Task, error)

	// RecordCorrection upserts one field correction and mirrors the value
	// into the task's verified data. Replaced corrections are retained in
	// the audit table.
	RecordCorrection(ctx context.Context, id uuid.UUID, reviewer string, cmd CorrectionCommand) (*Task, error)

	// RemoveCorrection withdraws a field correction before completion.
	RemoveCorrection(ctx context.Context, id uuid.UUID, reviewer, fieldName string) (*Task, error)

	// Stats returns a point-in-time snapshot of queue counts. MyTasksCount
	// is populated when reviewer is non-empty.
	Stats(ctx context.Context, reviewer string) (*Stats, error)

	// Workload returns per-reviewer activity rollups. Accuracy and
	// processing-time averages cover terminal reviews within the window.
	Workload(ctx context.Context, window time.Duration) ([]ReviewerActivity, error)
}
