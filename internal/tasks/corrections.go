package tasks

import (
	"fmt"
	"strings"
	"time"
)

// RecordCorrection applies one field-level edit to the task's correction
// ledger. The reason is required and validated before any mutation. The
// correction type is classified from the values: an unchanged value is a
// validation, a changed one a correction. Replace-by-fieldName semantics:
// the prior active correction for the field, if any, is returned for audit
// retention.
func (t *Task) RecordCorrection(reviewer string, cmd CorrectionCommand, now time.Time) (replaced *Correction, err error) {
	if strings.TrimSpace(cmd.FieldName) == "" {
		return nil, fmt.Errorf("%w: field name required", ErrValidation)
	}
	if strings.TrimSpace(cmd.Reason) == "" {
		return nil, fmt.Errorf("%w: correction reason required", ErrValidation)
	}
	if err := t.guardOwned(reviewer); err != nil {
		return nil, err
	}

	original, ok := t.ExtractedData[cmd.FieldName]
	if !ok {
		return nil, fmt.Errorf("%w: field %q not extracted", ErrValidation, cmd.FieldName)
	}

	correctionType := CorrectionTypeValidation
	if original != cmd.CorrectedValue {
		correctionType = CorrectionTypeCorrection
	}

	next := Correction{
		FieldName:      cmd.FieldName,
		OriginalValue:  original,
		CorrectedValue: cmd.CorrectedValue,
		CorrectionType: correctionType,
		Reason:         cmd.Reason,
		CorrectedBy:    reviewer,
		Timestamp:      now,
	}

	for i, c := range t.Corrections {
		if c.FieldName == cmd.FieldName {
			prior := c
			t.Corrections[i] = next
			t.VerifiedData[cmd.FieldName] = cmd.CorrectedValue
			return &prior, nil
		}
	}

	t.Corrections = append(t.Corrections, next)
	t.VerifiedData[cmd.FieldName] = cmd.CorrectedValue
	return nil, nil
}

// RemoveCorrection withdraws the active correction for a field before
// completion and restores the extracted value in VerifiedData. The removed
// correction is returned for audit retention.
func (t *Task) RemoveCorrection(reviewer, fieldName string) (*Correction, error) {
	if err := t.guardOwned(reviewer); err != nil {
		return nil, err
	}

	for i, c := range t.Corrections {
		if c.FieldName != fieldName {
			continue
		}
		removed := c
		t.Corrections = append(t.Corrections[:i], t.Corrections[i+1:]...)
		t.VerifiedData[fieldName] = t.ExtractedData[fieldName]
		return &removed, nil
	}

	return nil, fmt.Errorf("%w: no correction for field %q", ErrNotFound, fieldName)
}
