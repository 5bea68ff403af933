// Package batch implements bounded-concurrency batch processing over
// verification tasks. A coordinator claims each selected task through the
// store's atomic assignment and delegates the review outcome to a pluggable
// processor. Per-task failures are recorded, never dropped, and never abort
// sibling tasks unless the run is configured to pause on error.
package batch

import (
	"time"

	"github.com/google/uuid"
)

// DefaultConcurrency is the worker pool size when neither the coordinator's
// configuration nor the run options set one.
const DefaultConcurrency = 3

// SizeGuideline is the recommended maximum batch size. It is surfaced to
// callers as a warning, not enforced.
const SizeGuideline = 20

// Options configures one batch run.
type Options struct {
	// Reviewer is the identity tasks are claimed under. Defaults to "batch".
	Reviewer string `json:"reviewer,omitempty"`

	// MaxConcurrent bounds the worker pool. Defaults to the coordinator's
	// configured concurrency.
	MaxConcurrent int `json:"max_concurrent,omitempty"`

	// PauseOnError stops dispatching new tasks after the first failure;
	// in-flight tasks finish and undispatched tasks report as not started.
	PauseOnError bool `json:"pause_on_error,omitempty"`
}

func (o *Options) normalize(defaultConcurrency int) {
	if o.Reviewer == "" {
		o.Reviewer = "batch"
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = defaultConcurrency
	}
}

// OutcomeStatus classifies how one task fared within a batch run.
type OutcomeStatus string

// Per-task batch outcomes.
const (
	OutcomeCompleted  OutcomeStatus = "completed"
	OutcomeSkipped    OutcomeStatus = "skipped"
	OutcomeFailed     OutcomeStatus = "failed"
	OutcomeNotStarted OutcomeStatus = "not_started"
)

// Outcome records how one task fared. Error is populated for failures;
// Score for completions.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
	Score  *float64      `json:"score,omitempty"`
}

// Result is the final aggregate of a batch run.
type Result struct {
	BatchID    uuid.UUID                 `json:"batch_id"`
	Total      int                       `json:"total"`
	Completed  int                       `json:"completed"`
	Skipped    int                       `json:"skipped"`
	Errors     int                       `json:"errors"`
	NotStarted int                       `json:"not_started"`
	Outcomes   map[uuid.UUID]Outcome     `json:"outcomes"`
	Warning    string                    `json:"warning,omitempty"`
	Elapsed    float64                   `json:"elapsed_seconds"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
}

// Progress is an incremental snapshot of a running batch.
type Progress struct {
	BatchID   uuid.UUID   `json:"batch_id"`
	Total     int         `json:"total"`
	Completed int         `json:"completed"`
	Skipped   int         `json:"skipped"`
	Errors    int         `json:"errors"`
	Current   []uuid.UUID `json:"current"`

	// TimeRemaining estimates the seconds until the run finishes: the
	// remaining task count times the observed average task duration,
	// divided by the worker pool size.
	TimeRemaining float64 `json:"time_remaining_seconds"`
	Done          bool    `json:"done"`
}
