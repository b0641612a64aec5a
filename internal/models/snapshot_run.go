package models

import "time"

// SnapshotRunStatus tracks background generation.
type SnapshotRunStatus string

const (
	SnapshotRunQueued    SnapshotRunStatus = "queued"
	SnapshotRunRunning   SnapshotRunStatus = "running"
	SnapshotRunCompleted SnapshotRunStatus = "completed"
	SnapshotRunFailed    SnapshotRunStatus = "failed"
)

// SnapshotScope selects which approved snapshots a run collects.
type SnapshotScope string

const (
	SnapshotScopeOrganization SnapshotScope = "organization"
	SnapshotScopeSchool       SnapshotScope = "school"
	SnapshotScopeLearner      SnapshotScope = "learner"
)

// SnapshotRun groups the approved snapshots current at SnapshotDate for reporting.
type SnapshotRun struct {
	ID             string            `db:"id" json:"id"`
	OrganizationID string            `db:"organization_id" json:"organization_id"`
	SchoolID       *string           `db:"school_id" json:"school_id,omitempty"`
	SnapshotDate   time.Time         `db:"snapshot_date" json:"snapshot_date"`
	ScopeType      SnapshotScope     `db:"scope_type" json:"scope_type"`
	ScopeID        *string           `db:"scope_id" json:"scope_id,omitempty"`
	Term           *string           `db:"term" json:"term,omitempty"`
	SchoolYear     *string           `db:"school_year" json:"school_year,omitempty"`
	Status         SnapshotRunStatus `db:"status" json:"status"`
	SnapshotCount  int               `db:"snapshot_count" json:"snapshot_count"`
	ReportPath     *string           `db:"report_path" json:"-"`
	ErrorMessage   *string           `db:"error_message" json:"error_message,omitempty"`
	CreatedBy      string            `db:"created_by" json:"created_by"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	CompletedAt    *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
}

// SnapshotRunFilter constrains run listing.
type SnapshotRunFilter struct {
	OrganizationID string
	Status         SnapshotRunStatus
	Limit          int
	Offset         int
}
