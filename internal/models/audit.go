package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionMasteryDraftUpsert   = "MASTERY_DRAFT_UPSERT"
	AuditActionMasterySubmit        = "MASTERY_SUBMIT"
	AuditActionMasteryApprove       = "MASTERY_APPROVE"
	AuditActionMasteryRequestChange = "MASTERY_REQUEST_CHANGES"
	AuditActionMasteryOverride      = "MASTERY_OVERRIDE"
	AuditActionLabelSetWrite        = "LABEL_SET_WRITE"
	AuditActionLabelWrite           = "LABEL_WRITE"
	AuditActionLabelArchive         = "LABEL_ARCHIVE"
	AuditActionSnapshotRunCreate    = "SNAPSHOT_RUN_CREATE"
	AuditActionReportDownload       = "REPORT_DOWNLOAD"
	AuditActionStudentsExport       = "STUDENTS_EXPORT"
	AuditActionAdmissionsExport     = "ADMISSIONS_EXPORT"
)

// AuditResource names used in audit rows.
const (
	AuditResourceMasterySnapshot = "mastery_snapshot"
	AuditResourceLabelSet        = "assessment_label_set"
	AuditResourceLabel           = "assessment_label"
	AuditResourceSnapshotRun     = "mastery_snapshot_run"
	AuditResourceStudents        = "students"
	AuditResourceAdmissions      = "admissions"
)

// ReviewAuditAction maps a review decision to its audit action.
func ReviewAuditAction(action MasteryAction) string {
	switch action {
	case MasteryActionApprove:
		return AuditActionMasteryApprove
	case MasteryActionOverride:
		return AuditActionMasteryOverride
	case MasteryActionRequestChanges:
		return AuditActionMasteryRequestChange
	}
	return string(action)
}

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
