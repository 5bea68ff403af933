// Package tasks implements the verification task domain for Veriflow.
// It provides the task entity and its state machine, the durable task record
// store over PostgreSQL, the field correction ledger, and the HTTP surface
// for per-task review operations.
package tasks

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veriflowhq/veriflow/internal/scoring"
)

// Status is the lifecycle state of a verification task.
type Status string

// Task lifecycle states. Completed and rejected are terminal.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusEscalated  Status = "escalated"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Priority orders tasks for review dispatch.
type Priority string

// Task priorities, lowest to highest urgency.
const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

var priorityRanks = map[Priority]int{
	PriorityLow:      0,
	PriorityNormal:   1,
	PriorityHigh:     2,
	PriorityUrgent:   3,
	PriorityCritical: 4,
}

// Rank returns the numeric urgency of the priority. Unknown priorities rank
// below low so malformed records sink to the back of the queue.
func (p Priority) Rank() int {
	if rank, ok := priorityRanks[p]; ok {
		return rank
	}
	return -1
}

// Valid reports whether p is a recognized priority.
func (p Priority) Valid() bool {
	_, ok := priorityRanks[p]
	return ok
}

// Anomaly is a system-detected irregularity in extracted data. Anomalies are
// set when the task is created and are read-only during review.
type Anomaly struct {
	Field       string           `json:"field"`
	Type        string           `json:"type"`
	Severity    scoring.Severity `json:"severity"`
	Description string           `json:"description"`
}

// CorrectionType classifies a field correction.
type CorrectionType string

// Correction types. A correction changes the value; a validation confirms it;
// formatting normalizes its representation.
const (
	CorrectionTypeCorrection CorrectionType = "correction"
	CorrectionTypeValidation CorrectionType = "validation"
	CorrectionTypeFormatting CorrectionType = "formatting"
)

// Correction is one field-level human edit. At most one correction per field
// is active on a task; a new correction for the same field replaces it.
type Correction struct {
	FieldName      string         `json:"field_name"`
	OriginalValue  string         `json:"original_value"`
	CorrectedValue string         `json:"corrected_value"`
	CorrectionType CorrectionType `json:"correction_type"`
	Reason         string         `json:"reason"`
	CorrectedBy    string         `json:"corrected_by"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Task is one unit of review work: a document's AI-extracted field set
// awaiting human verification.
type Task struct {
	ID           uuid.UUID `json:"id"`
	DocumentID   uuid.UUID `json:"document_id"`
	DocumentType string    `json:"document_type"`

	// ExtractedData holds the original AI-produced values and is immutable
	// once set. VerifiedData starts equal to ExtractedData and tracks the
	// current authoritative values as corrections land.
	ExtractedData FieldMap `json:"extracted_data"`
	VerifiedData  FieldMap `json:"verified_data"`

	AIConfidence float64        `json:"ai_confidence"`
	Anomalies    AnomalyList    `json:"anomalies"`
	Corrections  CorrectionList `json:"corrections"`

	Priority Priority `json:"priority"`
	Status   Status   `json:"status"`

	AssignedTo  *string    `json:"assigned_to,omitempty"`
	ReviewedBy  *string    `json:"reviewed_by,omitempty"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	DueDate     time.Time  `json:"due_date"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`

	Comments         *string `json:"comments,omitempty"`
	RejectionReason  *string `json:"rejection_reason,omitempty"`
	EscalationReason *string `json:"escalation_reason,omitempty"`

	QualityScore      *float64       `json:"quality_score,omitempty"`
	QualityGrade      *scoring.Grade `json:"quality_grade,omitempty"`
	ProcessingSeconds *float64       `json:"processing_seconds,omitempty"`

	// Version is the optimistic concurrency token; every persisted mutation
	// bumps it by one.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Overdue reports whether the task is in progress past its due date at the
// given instant. Overdue is a monitoring signal, not a lifecycle state.
func (t *Task) Overdue(now time.Time) bool {
	return t.Status == StatusInProgress && now.After(t.DueDate)
}

// Correction returns the active correction for the field, if any.
func (t *Task) Correction(fieldName string) (Correction, bool) {
	for _, c := range t.Corrections {
		if c.FieldName == fieldName {
			return c, true
		}
	}
	return Correction{}, false
}

// SubmitCommand carries the data the extraction pipeline provides when it
// registers a task for human verification.
type SubmitCommand struct {
	DocumentID    uuid.UUID         `json:"document_id"`
	DocumentType  string            `json:"document_type"`
	ExtractedData map[string]string `json:"extracted_data"`
	AIConfidence  float64           `json:"ai_confidence"`
	Anomalies     []Anomaly         `json:"anomalies"`
	Priority      Priority          `json:"priority"`
	DueDate       time.Time         `json:"due_date"`
}

func (cmd SubmitCommand) validate() error {
	if cmd.DocumentID == uuid.Nil {
		return fmt.Errorf("%w: document_id required", ErrValidation)
	}
	if cmd.DocumentType == "" {
		return fmt.Errorf("%w: document_type required", ErrValidation)
	}
	if len(cmd.ExtractedData) == 0 {
		return fmt.Errorf("%w: extracted_data required", ErrValidation)
	}
	if cmd.AIConfidence < 0 || cmd.AIConfidence > 1 {
		return fmt.Errorf("%w: ai_confidence must be within [0,1]", ErrValidation)
	}
	if !cmd.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, cmd.Priority)
	}
	if cmd.DueDate.IsZero() {
		return fmt.Errorf("%w: due_date required", ErrValidation)
	}
	return nil
}

// NewTask constructs a pending task from an extraction pipeline submission.
// VerifiedData starts as an independent copy of ExtractedData so corrections
// never alias the extracted record.
func NewTask(cmd SubmitCommand, now time.Time) (*Task, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	extracted := FieldMap(cmd.ExtractedData)

	return &Task{
		ID:            uuid.New(),
		DocumentID:    cmd.DocumentID,
		DocumentType:  cmd.DocumentType,
		ExtractedData: extracted,
		VerifiedData:  extracted.Clone(),
		AIConfidence:  cmd.AIConfidence,
		Anomalies:     AnomalyList(cmd.Anomalies),
		Corrections:   CorrectionList{},
		Priority:      cmd.Priority,
		Status:        StatusPending,
		DueDate:       cmd.DueDate.UTC(),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CompleteCommand carries the reviewer's final submission for a task.
// VerifiedData is optional; when present it must not introduce fields the
// extraction never produced and the correction ledger never recorded.
type CompleteCommand struct {
	VerifiedData map[string]string `json:"verified_data,omitempty"`
	Comments     *string           `json:"comments,omitempty"`
}

// CorrectionCommand carries one field-level edit from a reviewer.
type CorrectionCommand struct {
	FieldName      string `json:"field_name"`
	CorrectedValue string `json:"corrected_value"`
	Reason         string `json:"reason"`
}

// Stats is a point-in-time snapshot of queue-level counts. It is not
// transactionally consistent with concurrent assignments; callers must
// tolerate staleness up to one refresh interval.
type Stats struct {
	TotalTasks            int     `json:"total_tasks"`
	PendingTasks          int     `json:"pending_tasks"`
	InProgressTasks       int     `json:"in_progress_tasks"`
	EscalatedTasks        int     `json:"escalated_tasks"`
	OverdueTasks          int     `json:"overdue_tasks"`
	CompletedToday        int     `json:"completed_today"`
	MyTasksCount          int     `json:"my_tasks_count"`
	AverageProcessingTime float64 `json:"average_processing_time"`
}

// ReviewerActivity is one reviewer's raw activity rollup as read from the
// store. The workload aggregator derives utilization from it.
type ReviewerActivity struct {
	ReviewerID            string  `json:"reviewer_id"`
	CurrentTasks          int     `json:"current_tasks"`
	CompletedToday        int     `json:"completed_today"`
	AccuracyRate          float64 `json:"accuracy_rate"`
	AverageProcessingTime float64 `json:"average_processing_time"`
}
