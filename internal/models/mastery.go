package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

// MasteryStatus is the lifecycle state of a mastery snapshot.
type MasteryStatus string

const (
	MasteryStatusDraft            MasteryStatus = "draft"
	MasteryStatusSubmitted        MasteryStatus = "submitted"
	MasteryStatusChangesRequested MasteryStatus = "changes_requested"
	MasteryStatusApproved         MasteryStatus = "approved"
)

// MasteryAction is a transition trigger on a snapshot.
type MasteryAction string

const (
	MasteryActionSubmit         MasteryAction = "submit"
	MasteryActionApprove        MasteryAction = "approve"
	MasteryActionRequestChanges MasteryAction = "request_changes"
	MasteryActionOverride       MasteryAction = "override"
)

// ParseReviewAction accepts only reviewer decisions.
func ParseReviewAction(raw string) (MasteryAction, bool) {
	switch action := MasteryAction(strings.TrimSpace(raw)); action {
	case MasteryActionApprove, MasteryActionRequestChanges, MasteryActionOverride:
		return action, true
	}
	return "", false
}

var masteryTransitions = map[MasteryStatus]map[MasteryAction]MasteryStatus{
	MasteryStatusDraft: {
		MasteryActionSubmit: MasteryStatusSubmitted,
	},
	MasteryStatusChangesRequested: {
		MasteryActionSubmit: MasteryStatusSubmitted,
	},
	MasteryStatusSubmitted: {
		MasteryActionApprove:        MasteryStatusApproved,
		MasteryActionOverride:       MasteryStatusApproved,
		MasteryActionRequestChanges: MasteryStatusChangesRequested,
	},
}

// NextStatus looks up the transition table. Approved snapshots are terminal.
func NextStatus(from MasteryStatus, action MasteryAction) (MasteryStatus, error) {
	if next, ok := masteryTransitions[from][action]; ok {
		return next, nil
	}
	return "", fmt.Errorf("cannot %s a %s snapshot", action, from)
}

// IsDraftLike reports statuses the owning teacher may still edit.
func (s MasteryStatus) IsDraftLike() bool {
	return s == MasteryStatusDraft || s == MasteryStatusChangesRequested
}

// MasterySnapshot is one point-in-time mastery judgment for a learner and competency.
// Status is authoritative; ArchivedAt and ConfirmedBy are kept consistent with it:
// draft-like rows carry ArchivedAt, approved rows carry ConfirmedBy = reviewer.
type MasterySnapshot struct {
	ID                    string         `db:"id" json:"id"`
	LearnerID             string         `db:"learner_id" json:"learner_id"`
	CompetencyID          string         `db:"competency_id" json:"competency_id"`
	TeacherID             string         `db:"teacher_id" json:"teacher_id"`
	MasteryLevelID        string         `db:"mastery_level_id" json:"mastery_level_id"`
	RationaleText         string         `db:"rationale_text" json:"rationale_text"`
	HighlightEvidenceIDs  pq.StringArray `db:"highlight_evidence_ids" json:"highlight_evidence_ids"`
	OrganizationID        string         `db:"organization_id" json:"organization_id"`
	SchoolID              *string        `db:"school_id" json:"school_id,omitempty"`
	Status                MasteryStatus  `db:"status" json:"status"`
	ArchivedAt            *time.Time     `db:"archived_at" json:"archived_at,omitempty"`
	ConfirmedBy           *string        `db:"confirmed_by" json:"confirmed_by,omitempty"`
	ReviewedBy            *string        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt            *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewerNotes         *string        `db:"reviewer_notes" json:"reviewer_notes,omitempty"`
	OverrideJustification *string        `db:"override_justification" json:"override_justification,omitempty"`
	OriginalLevelID       *string        `db:"original_level_id" json:"original_level_id,omitempty"`
	SnapshotDate          time.Time      `db:"snapshot_date" json:"snapshot_date"`
	SubmittedAt           *time.Time     `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
}

// IsDraft reports the archived marker used for drafts and returned proposals.
func (s *MasterySnapshot) IsDraft() bool {
	return s.ArchivedAt != nil
}

// IsApproved reports whether the snapshot may be shown to students: not archived,
// confirmed by someone other than the authoring teacher.
func (s *MasterySnapshot) IsApproved() bool {
	if s.ArchivedAt != nil || s.ConfirmedBy == nil {
		return false
	}
	confirmedBy := strings.TrimSpace(*s.ConfirmedBy)
	if confirmedBy == "" || confirmedBy == s.TeacherID {
		return false
	}
	return s.Status == "" || s.Status == MasteryStatusApproved
}

// InReviewQueue reports a submitted proposal still waiting for a reviewer. A legacy
// self-submitted marker (ConfirmedBy = TeacherID) does not count as a confirmation.
func (s *MasterySnapshot) InReviewQueue() bool {
	if s.ArchivedAt != nil || s.Status != MasteryStatusSubmitted {
		return false
	}
	return s.ConfirmedBy == nil || *s.ConfirmedBy == s.TeacherID
}

// CurrentApproved keeps the most recent approved snapshot per (learner, competency),
// ordered by learner then competency.
func CurrentApproved(snapshots []MasterySnapshot) []MasterySnapshot {
	type key struct{ learner, competency string }
	latest := make(map[key]MasterySnapshot)
	for _, snap := range snapshots {
		if !snap.IsApproved() {
			continue
		}
		k := key{snap.LearnerID, snap.CompetencyID}
		current, ok := latest[k]
		if !ok || newerSnapshot(snap, current) {
			latest[k] = snap
		}
	}
	result := make([]MasterySnapshot, 0, len(latest))
	for _, snap := range latest {
		result = append(result, snap)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LearnerID != result[j].LearnerID {
			return result[i].LearnerID < result[j].LearnerID
		}
		return result[i].CompetencyID < result[j].CompetencyID
	})
	return result
}

func newerSnapshot(a, b MasterySnapshot) bool {
	if !a.SnapshotDate.Equal(b.SnapshotDate) {
		return a.SnapshotDate.After(b.SnapshotDate)
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}

// MasterySnapshotFilter constrains snapshot listing queries. OrganizationID is required.
type MasterySnapshotFilter struct {
	OrganizationID string
	TeacherID      string
	LearnerID      string
	Statuses       []MasteryStatus
	Limit          int
	Offset         int
}

// MasteryModel groups an organization's ordered mastery levels.
type MasteryModel struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MasteryLevel is an ordered label within a model (e.g. Emerging, Developing, Proficient).
type MasteryLevel struct {
	ID             string    `db:"id" json:"id"`
	ModelID        string    `db:"model_id" json:"model_id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	Label          string    `db:"label" json:"label"`
	DisplayOrder   int       `db:"display_order" json:"display_order"`
	Threshold      float64   `db:"threshold" json:"threshold"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
