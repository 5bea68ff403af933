package tasks

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/veriflowhq/veriflow/pkg/query"
	"github.com/veriflowhq/veriflow/pkg/repository"
)

// FieldMap stores field-name to value mappings as a JSONB column.
type FieldMap map[string]string

// Clone returns a deep copy so mutations never alias the source map.
func (m FieldMap) Clone() FieldMap {
	clone := make(FieldMap, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

// Value implements driver.Valuer for JSONB storage.
func (m FieldMap) Value() (driver.Value, error) {
	if m == nil {
		m = FieldMap{}
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (m *FieldMap) Scan(src any) error {
	return scanJSON(src, m)
}

// AnomalyList stores detected anomalies as a JSONB column.
type AnomalyList []Anomaly

// Value implements driver.Valuer for JSONB storage.
func (l AnomalyList) Value() (driver.Value, error) {
	if l == nil {
		l = AnomalyList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (l *AnomalyList) Scan(src any) error {
	return scanJSON(src, l)
}

// CorrectionList stores the active correction set as a JSONB column.
type CorrectionList []Correction

// Value implements driver.Valuer for JSONB storage.
func (l CorrectionList) Value() (driver.Value, error) {
	if l == nil {
		l = CorrectionList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (l *CorrectionList) Scan(src any) error {
	return scanJSON(src, l)
}

func scanJSON(src, dest any) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, dest)
	case string:
		return json.Unmarshal([]byte(data), dest)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", src)
	}
}

var projection = query.
	NewProjectionMap("public", "verification_tasks", "t").
	Project("id", "ID").
	Project("document_id", "DocumentID").
	Project("document_type", "DocumentType").
	Project("extracted_data", "ExtractedData").
	Project("verified_data", "VerifiedData").
	Project("ai_confidence", "AIConfidence").
	Project("anomalies", "Anomalies").
	Project("corrections", "Corrections").
	Project("priority", "Priority").
	Project("status", "Status").
	Project("assigned_to", "AssignedTo").
	Project("reviewed_by", "ReviewedBy").
	Project("assigned_at", "AssignedAt").
	Project("due_date", "DueDate").
	Project("completed_at", "CompletedAt").
	Project("rejected_at", "RejectedAt").
	Project("comments", "Comments").
	Project("rejection_reason", "RejectionReason").
	Project("escalation_reason", "EscalationReason").
	Project("quality_score", "QualityScore").
	Project("quality_grade", "QualityGrade").
	Project("processing_seconds", "ProcessingSeconds").
	Project("version", "Version").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "DueDate",
	Descending: false,
}

// Filters contains optional filtering criteria for task queries.
// Nil fields are ignored; all fields use exact matching.
type Filters struct {
	Status       *Status    `json:"status,omitempty"`
	Priority     *Priority  `json:"priority,omitempty"`
	DocumentID   *uuid.UUID `json:"document_id,omitempty"`
	DocumentType *string    `json:"document_type,omitempty"`
	AssignedTo   *string    `json:"assigned_to,omitempty"`
	ReviewedBy   *string    `json:"reviewed_by,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("Priority", f.Priority).
		WhereEquals("DocumentID", f.DocumentID).
		WhereEquals("DocumentType", f.DocumentType).
		WhereEquals("AssignedTo", f.AssignedTo).
		WhereEquals("ReviewedBy", f.ReviewedBy)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		status := Status(s)
		f.Status = &status
	}

	if p := values.Get("priority"); p != "" {
		priority := Priority(p)
		f.Priority = &priority
	}

	if d := values.Get("document_id"); d != "" {
		if id, err := uuid.Parse(d); err == nil {
			f.DocumentID = &id
		}
	}

	if dt := values.Get("document_type"); dt != "" {
		f.DocumentType = &dt
	}

	if a := values.Get("assigned_to"); a != "" {
		f.AssignedTo = &a
	}

	if r := values.Get("reviewed_by"); r != "" {
		f.ReviewedBy = &r
	}

	return f
}

func scanTask(s repository.Scanner) (Task, error) {
	var t Task
	err := s.Scan(
		&t.ID,
		&t.DocumentID,
		&t.DocumentType,
		&t.ExtractedData,
		&t.VerifiedData,
		&t.AIConfidence,
		&t.Anomalies,
		&t.Corrections,
		&t.Priority,
		&t.Status,
		&t.AssignedTo,
		&t.ReviewedBy,
		&t.AssignedAt,
		&t.DueDate,
		&t.CompletedAt,
		&t.RejectedAt,
		&t.Comments,
		&t.RejectionReason,
		&t.EscalationReason,
		&t.QualityScore,
		&t.QualityGrade,
		&t.ProcessingSeconds,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}
