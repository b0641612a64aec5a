package dto

import (
	"time"

	"github.com/noah-isme/sis-api/internal/models"
)

// EvidenceInput references a piece of evidence supporting a draft.
type EvidenceInput struct {
	EvidenceID   string              `json:"evidence_id" validate:"required"`
	EvidenceType models.EvidenceType `json:"evidence_type" validate:"required,evidence_type"`
}

// UpsertMasteryDraftRequest creates or updates the caller's draft for a learner and competency.
// A nil Evidence leaves existing links untouched; an empty list clears them.
type UpsertMasteryDraftRequest struct {
	LearnerID            string           `json:"learner_id" validate:"required"`
	CompetencyID         string           `json:"competency_id" validate:"required"`
	MasteryLevelID       string           `json:"mastery_level_id" validate:"required"`
	RationaleText        string           `json:"rationale_text" validate:"required"`
	HighlightEvidenceIDs []string         `json:"highlight_evidence_ids"`
	OrganizationID       string           `json:"organization_id"`
	SchoolID             *string          `json:"school_id"`
	Evidence             *[]EvidenceInput `json:"evidence" validate:"omitempty,dive"`
}

// ReviewMasteryRequest captures a reviewer's decision on a submitted proposal.
type ReviewMasteryRequest struct {
	Action                string  `json:"action"`
	ReviewerNotes         *string `json:"reviewer_notes"`
	OverrideLevelID       *string `json:"override_level_id"`
	OverrideJustification *string `json:"override_justification"`
}

// MasteryProposalQuery mirrors the proposal listing filters.
type MasteryProposalQuery struct {
	Type      string `form:"type"`
	TeacherID string `form:"teacher_id"`
}

// Proposal list types.
const (
	ProposalListDrafts = "drafts"
	ProposalListReview = "review"
)

// CreateSnapshotRunRequest schedules report generation over approved snapshots.
type CreateSnapshotRunRequest struct {
	SnapshotDate *time.Time `json:"snapshot_date"`
	ScopeType    string     `json:"scope_type" validate:"omitempty,oneof=organization school learner"`
	ScopeID      *string    `json:"scope_id"`
	Term         *string    `json:"term"`
	SchoolYear   *string    `json:"school_year"`
}

// SnapshotRunQuery filters the run listing.
type SnapshotRunQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// SnapshotRunDetail bundles a run with the snapshots captured by it.
type SnapshotRunDetail struct {
	Run       *models.SnapshotRun      `json:"run"`
	Snapshots []models.MasterySnapshot `json:"snapshots"`
}

// ReportLink is a time-limited download URL for a run report.
type ReportLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
