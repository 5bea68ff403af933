package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/veriflowhq/veriflow/internal/events"
	"github.com/veriflowhq/veriflow/internal/metrics"
	"github.com/veriflowhq/veriflow/pkg/pagination"
	"github.com/veriflowhq/veriflow/pkg/query"
	"github.com/veriflowhq/veriflow/pkg/repository"
)

// maxUpdateAttempts bounds the optimistic-concurrency retry loop. Each retry
// re-reads fresh state and re-evaluates the transition guards.
const maxUpdateAttempts = 3

// errStaleVersion signals that a versioned update matched zero rows.
var errStaleVersion = errors.New("stale task version")

type repo struct {
	db         *sql.DB
	events     events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a task repository implementing the System interface.
func New(
	db *sql.DB,
	publisher events.Publisher,
	meters *metrics.Metrics,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		events:     publisher,
		metrics:    meters,
		logger:     logger.With("system", "tasks"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Create(ctx context.Context, cmd SubmitCommand) (*Task, error) {
	created, err := NewTask(cmd, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	args := []any{
		created.ID,
		created.DocumentID,
		created.DocumentType,
		created.ExtractedData,
		created.VerifiedData,
		created.AIConfidence,
		created.Anomalies,
		created.Corrections,
		created.Priority,
		created.Status,
		created.DueDate,
	}

	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Task, error) {
		return repository.QueryOne(ctx, tx, insertSQL, args, scanTask)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrConflict)
	}

	r.logger.Info(
		"task created",
		"id", t.ID,
		"document_id", t.DocumentID,
		"priority", t.Priority,
		"anomalies", len(t.Anomalies),
	)
	return &t, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Task, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	t, err := repository.QueryOne(ctx, r.db, q, args, scanTask)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrConflict)
	}
	return &t, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Task], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "DocumentType", "AssignedTo", "ReviewedBy")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanTask)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Pending(ctx context.Context) ([]Task, error) {
	qb := query.NewBuilder(projection, defaultSort)
	qb.WhereIn("Status", []any{StatusPending, StatusEscalated})

	q, args := qb.Build()
	pending, err := repository.QueryMany(ctx, r.db, q, args, scanTask)
	if err != nil {
		return nil, fmt.Errorf("query pending tasks: %w", err)
	}
	return pending, nil
}

func (r *repo) Overdue(ctx context.Context) ([]Task, error) {
	q := `
		SELECT ` + projection.Columns() + `
		FROM ` + projection.Table() + `
		WHERE t.status = 'in_progress' AND t.due_date < now()
		ORDER BY t.due_date ASC`

	overdue, err := repository.QueryMany(ctx, r.db, q, nil, scanTask)
	if err != nil {
		return nil, fmt.Errorf("query overdue tasks: %w", err)
	}
	return overdue, nil
}

func (r *repo) Claim(ctx context.Context, id uuid.UUID, reviewer string) (*Task, error) {
	return r.transition(ctx, id, reviewer, func(t *Task) error {
		return t.Assign(reviewer, time.Now().UTC())
	}, nil)
}

func (r *repo) Complete(ctx context.Context, id uuid.UUID, reviewer string, cmd CompleteCommand) (*Task, error) {
	t, err := r.transition(ctx, id, reviewer, func(t *Task) error {
		return t.Complete(reviewer, cmd, time.Now().UTC())
	}, nil)
	if err != nil {
		return nil, err
	}

	r.metrics.ObserveProcessingTime(*t.ProcessingSeconds)
	r.logger.Info(
		"task completed",
		"id", t.ID,
		"reviewer", reviewer,
		"score", *t.QualityScore,
		"grade", *t.QualityGrade,
	)
	return t, nil
}

func (r *repo) Reject(ctx context.Context, id uuid.UUID, reviewer, reason string) (*Task, error) {
	t, err := r.transition(ctx, id, reviewer, func(t *Task) error {
		return t.Reject(reviewer, reason, time.Now().UTC())
	}, nil)
	if err != nil {
		return nil, err
	}

	r.metrics.ObserveProcessingTime(*t.ProcessingSeconds)
	r.logger.Info("task rejected", "id", t.ID, "reviewer", reviewer)
	return t, nil
}

func (r *repo) Release(ctx context.Context, id uuid.UUID, reviewer string) (*Task, error) {
	return r.transition(ctx, id, reviewer, func(t *Task) error {
		return t.Release(reviewer)
	}, nil)
}

func (r *repo) Escalate(ctx context.Context, id uuid.UUID, reviewer, reason string) (*Task, error) {
	return r.transition(ctx, id, reviewer, func(t *Task) error {
		return t.Escalate(reviewer, reason)
	}, nil)
}

func (r *repo) RecordCorrection(ctx context.Context, id uuid.UUID, reviewer string, cmd CorrectionCommand) (*Task, error) {
	var replaced *Correction

	t, err := r.update(ctx, id, func(t *Task) error {
		prior, err := t.RecordCorrection(reviewer, cmd, time.Now().UTC())
		if err != nil {
			return err
		}
		replaced = prior
		return nil
	}, func(ctx context.Context, tx *sql.Tx) error {
		if replaced == nil {
			return nil
		}
		return r.auditCorrection(ctx, tx, id, *replaced)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info(
		"correction recorded",
		"id", t.ID,
		"field", cmd.FieldName,
		"reviewer", reviewer,
		"replaced", replaced != nil,
	)
	return t, nil
}

func (r *repo) RemoveCorrection(ctx context.Context, id uuid.UUID, reviewer, fieldName string) (*Task, error) {
	var removed *Correction

	t, err := r.update(ctx, id, func(t *Task) error {
		prior, err := t.RemoveCorrection(reviewer, fieldName)
		if err != nil {
			return err
		}
		removed = prior
		return nil
	}, func(ctx context.Context, tx *sql.Tx) error {
		return r.auditCorrection(ctx, tx, id, *removed)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("correction removed", "id", t.ID, "field", fieldName, "reviewer", reviewer)
	return t, nil
}

func (r *repo) Stats(ctx context.Context, reviewer string) (*Stats, error) {
	q := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'escalated'),
			COUNT(*) FILTER (WHERE status = 'in_progress' AND due_date < now()),
			COUNT(*) FILTER (WHERE status = 'completed' AND completed_at >= date_trunc('day', now())),
			COUNT(*) FILTER (WHERE status = 'in_progress' AND assigned_to = $1),
			COALESCE(AVG(processing_seconds) FILTER (WHERE status = 'completed'), 0)
		FROM verification_tasks`

	var s Stats
	err := r.db.QueryRowContext(ctx, q, reviewer).Scan(
		&s.TotalTasks,
		&s.PendingTasks,
		&s.InProgressTasks,
		&s.EscalatedTasks,
		&s.OverdueTasks,
		&s.CompletedToday,
		&s.MyTasksCount,
		&s.AverageProcessingTime,
	)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &s, nil
}

func (r *repo) Workload(ctx context.Context, window time.Duration) ([]ReviewerActivity, error) {
	byReviewer := make(map[string]*ReviewerActivity)

	currentQ := `
		SELECT assigned_to, COUNT(*)
		FROM verification_tasks
		WHERE status = 'in_progress' AND assigned_to IS NOT NULL
		GROUP BY assigned_to`

	rows, err := r.db.QueryContext(ctx, currentQ)
	if err != nil {
		return nil, fmt.Errorf("query current workload: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reviewer string
		var count int
		if err := rows.Scan(&reviewer, &count); err != nil {
			return nil, fmt.Errorf("scan current workload: %w", err)
		}
		activity(byReviewer, reviewer).CurrentTasks = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reviewedQ := `
		SELECT
			reviewed_by,
			COUNT(*) FILTER (WHERE status = 'completed' AND completed_at >= date_trunc('day', now())),
			COALESCE(AVG(quality_score) FILTER (WHERE quality_score IS NOT NULL AND updated_at >= $1), 0),
			COALESCE(AVG(processing_seconds) FILTER (WHERE processing_seconds IS NOT NULL AND updated_at >= $1), 0)
		FROM verification_tasks
		WHERE status IN ('completed', 'rejected') AND reviewed_by IS NOT NULL
		GROUP BY reviewed_by`

	reviewed, err := r.db.QueryContext(ctx, reviewedQ, time.Now().UTC().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("query reviewed workload: %w", err)
	}
	defer reviewed.Close()

	for reviewed.Next() {
		var reviewer string
		var completedToday int
		var accuracy, avgSeconds float64
		if err := reviewed.Scan(&reviewer, &completedToday, &accuracy, &avgSeconds); err != nil {
			return nil, fmt.Errorf("scan reviewed workload: %w", err)
		}
		a := activity(byReviewer, reviewer)
		a.CompletedToday = completedToday
		a.AccuracyRate = accuracy
		a.AverageProcessingTime = avgSeconds
	}
	if err := reviewed.Err(); err != nil {
		return nil, err
	}

	result := make([]ReviewerActivity, 0, len(byReviewer))
	for _, a := range byReviewer {
		result = append(result, *a)
	}
	return result, nil
}

// transition runs a state-machine mutation through the versioned update path
// and emits the transition event on success.
func (r *repo) transition(
	ctx context.Context,
	id uuid.UUID,
	actor string,
	mutate func(*Task) error,
	post func(context.Context, *sql.Tx) error,
) (*Task, error) {
	var from Status

	t, err := r.update(ctx, id, func(t *Task) error {
		from = t.Status
		return mutate(t)
	}, post)
	if err != nil {
		return nil, err
	}

	r.metrics.ObserveTransition(string(from), string(t.Status))
	r.events.TaskTransitioned(ctx, events.TaskEvent{
		TaskID: t.ID,
		From:   string(from),
		To:     string(t.Status),
		Actor:  actor,
		At:     time.Now().UTC(),
	})
	return t, nil
}

// update performs an atomic read-modify-write with optimistic concurrency.
// The mutation runs against a fresh read; the write matches the read version
// and bumps it. A lost race re-reads and retries up to maxUpdateAttempts, so
// guards are always re-evaluated on current state. Guard violations abort
// without retrying: nothing was persisted.
func (r *repo) update(
	ctx context.Context,
	id uuid.UUID,
	mutate func(*Task) error,
	post func(context.Context, *sql.Tx) error,
) (*Task, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		t, err := r.Find(ctx, id)
		if err != nil {
			return nil, err
		}

		readVersion := t.Version
		if err := mutate(t); err != nil {
			return nil, err
		}

		updated, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Task, error) {
			row, err := repository.QueryOne(ctx, tx, updateSQL, updateArgs(t, readVersion), scanTask)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return Task{}, errStaleVersion
				}
				return Task{}, err
			}

			if post != nil {
				if err := post(ctx, tx); err != nil {
					return Task{}, err
				}
			}
			return row, nil
		})
		if errors.Is(err, errStaleVersion) {
			continue
		}
		if err != nil {
			return nil, repository.MapError(err, ErrNotFound, ErrConflict)
		}
		return &updated, nil
	}

	return nil, fmt.Errorf("%w: exhausted %d attempts", ErrConflict, maxUpdateAttempts)
}

const updateSQL = `
	UPDATE verification_tasks SET
		verified_data = $3,
		corrections = $4,
		status = $5,
		assigned_to = $6,
		reviewed_by = $7,
		assigned_at = $8,
		completed_at = $9,
		rejected_at = $10,
		comments = $11,
		rejection_reason = $12,
		escalation_reason = $13,
		quality_score = $14,
		quality_grade = $15,
		processing_seconds = $16,
		version = version + 1,
		updated_at = now()
	WHERE id = $1 AND version = $2
	RETURNING
		id, document_id, document_type, extracted_data, verified_data,
		ai_confidence, anomalies, corrections, priority, status,
		assigned_to, reviewed_by, assigned_at, due_date, completed_at,
		rejected_at, comments, rejection_reason, escalation_reason,
		quality_score, quality_grade, processing_seconds, version,
		created_at, updated_at`

func updateArgs(t *Task, readVersion int) []any {
	return []any{
		t.ID,
		readVersion,
		t.VerifiedData,
		t.Corrections,
		t.Status,
		t.AssignedTo,
		t.ReviewedBy,
		t.AssignedAt,
		t.CompletedAt,
		t.RejectedAt,
		t.Comments,
		t.RejectionReason,
		t.EscalationReason,
		t.QualityScore,
		t.QualityGrade,
		t.ProcessingSeconds,
	}
}

func (r *repo) auditCorrection(ctx context.Context, tx *sql.Tx, taskID uuid.UUID, c Correction) error {
	q := `
		INSERT INTO correction_audit(
			id, task_id, field_name, original_value, corrected_value,
			correction_type, reason, corrected_by, corrected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.ExecContext(ctx, q,
		uuid.New(),
		taskID,
		c.FieldName,
		c.OriginalValue,
		c.CorrectedValue,
		c.CorrectionType,
		c.Reason,
		c.CorrectedBy,
		c.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("audit correction: %w", err)
	}
	return nil
}

func activity(byReviewer map[string]*ReviewerActivity, reviewer string) *ReviewerActivity {
	if a, ok := byReviewer[reviewer]; ok {
		return a
	}
	a := &ReviewerActivity{ReviewerID: reviewer}
	byReviewer[reviewer] = a
	return a
}

const insertSQL = `
	INSERT INTO verification_tasks(
		id, document_id, document_type, extracted_data, verified_data,
		ai_confidence, anomalies, corrections, priority, status, due_date)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING
		id, document_id, document_type, extracted_data, verified_data,
		ai_confidence, anomalies, corrections, priority, status,
		assigned_to, reviewed_by, assigned_at, due_date, completed_at,
		rejected_at, comments, rejection_reason, escalation_reason,
		quality_score, quality_grade, processing_seconds, version,
		created_at, updated_at`
