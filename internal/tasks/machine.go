package tasks

import (
	"fmt"
	"strings"
	"time"

	"github.com/veriflowhq/veriflow/internal/scoring"
)

// The task state machine:
//
//	pending --assign(reviewer)--> in_progress
//	in_progress --complete(result)--> completed
//	in_progress --reject(reason)--> rejected
//	in_progress --release()--> pending
//	in_progress --escalate(reason)--> escalated
//	escalated --assign(reviewer)--> in_progress
//
// Transitions are pure mutations applied inside the store's atomic update.
// Guard violations return before any field changes, so a failed transition
// never partially mutates the task.

// Assign claims the task for a reviewer. Valid from pending and escalated;
// any other status fails with ErrAlreadyAssigned.
func (t *Task) Assign(reviewer string, now time.Time) error {
	if strings.TrimSpace(reviewer) == "" {
		return fmt.Errorf("%w: reviewer required", ErrValidation)
	}
	if t.Status != StatusPending && t.Status != StatusEscalated {
		return fmt.Errorf("%w: status is %s", ErrAlreadyAssigned, t.Status)
	}

	t.Status = StatusInProgress
	t.AssignedTo = &reviewer
	t.AssignedAt = &now
	return nil
}

// Complete finalizes the review. The quality score is computed from the AI
// confidence, the active corrections, the anomalies detected at creation,
// and the elapsed time since assignment.
func (t *Task) Complete(reviewer string, cmd CompleteCommand, now time.Time) error {
	if err := t.guardOwned(reviewer); err != nil {
		return err
	}
	if err := t.validateVerifiedData(cmd.VerifiedData); err != nil {
		return err
	}

	for field, value := range cmd.VerifiedData {
		t.VerifiedData[field] = value
	}

	seconds := t.processingSeconds(now)
	quality := scoring.ComputeQuality(t.AIConfidence, len(t.Corrections), t.anomalySeverities(), seconds)

	t.Status = StatusCompleted
	t.ReviewedBy = &reviewer
	t.AssignedTo = nil
	t.CompletedAt = &now
	t.Comments = cmd.Comments
	t.QualityScore = &quality.Score
	t.QualityGrade = &quality.Grade
	t.ProcessingSeconds = &seconds
	return nil
}

// Reject declines the review with a reason. The reason is required and is
// validated before any mutation.
func (t *Task) Reject(reviewer, reason string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: rejection reason required", ErrValidation)
	}
	if err := t.guardOwned(reviewer); err != nil {
		return err
	}

	seconds := t.processingSeconds(now)

	t.Status = StatusRejected
	t.ReviewedBy = &reviewer
	t.AssignedTo = nil
	t.RejectedAt = &now
	t.RejectionReason = &reason
	t.ProcessingSeconds = &seconds
	return nil
}

// Release abandons the review without deciding, returning the task to the
// pending queue for another reviewer.
func (t *Task) Release(reviewer string) error {
	if err := t.guardOwned(reviewer); err != nil {
		return err
	}

	t.Status = StatusPending
	t.AssignedTo = nil
	t.AssignedAt = nil
	return nil
}

// Escalate hands the task off for senior review. The task becomes claimable
// again via Assign.
func (t *Task) Escalate(reviewer, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: escalation reason required", ErrValidation)
	}
	if err := t.guardOwned(reviewer); err != nil {
		return err
	}

	t.Status = StatusEscalated
	t.AssignedTo = nil
	t.EscalationReason = &reason
	return nil
}

// guardOwned enforces the protected-transition guards in order: the task
// must be in progress, and the actor must hold the current assignment.
func (t *Task) guardOwned(reviewer string) error {
	if t.Status != StatusInProgress {
		return fmt.Errorf("%w: status is %s", ErrInvalidState, t.Status)
	}
	if t.AssignedTo == nil || *t.AssignedTo != reviewer {
		return fmt.Errorf("%w: assigned to %s", ErrNotOwned, assignedName(t.AssignedTo))
	}
	return nil
}

// validateVerifiedData rejects submissions introducing fields outside the
// extracted set and the corrected set.
func (t *Task) validateVerifiedData(data map[string]string) error {
	for field := range data {
		if _, ok := t.ExtractedData[field]; ok {
			continue
		}
		if _, ok := t.Correction(field); ok {
			continue
		}
		return fmt.Errorf("%w: unknown field %q", ErrValidation, field)
	}
	return nil
}

func (t *Task) processingSeconds(now time.Time) float64 {
	if t.AssignedAt == nil {
		return 0
	}
	return now.Sub(*t.AssignedAt).Seconds()
}

func (t *Task) anomalySeverities() []scoring.Severity {
	severities := make([]scoring.Severity, len(t.Anomalies))
	for i, a := range t.Anomalies {
		severities[i] = a.Severity
	}
	return severities
}

func assignedName(reviewer *string) string {
	if reviewer == nil {
		return "nobody"
	}
	return *reviewer
}
