package models

import "time"

// EvidenceType discriminates what an evidence link points at.
type EvidenceType string

const (
	EvidenceTypeObservation       EvidenceType = "observation"
	EvidenceTypePortfolioArtifact EvidenceType = "portfolio_artifact"
	EvidenceTypeAssessment        EvidenceType = "assessment"
)

// Valid reports whether the evidence type is known.
func (t EvidenceType) Valid() bool {
	switch t {
	case EvidenceTypeObservation, EvidenceTypePortfolioArtifact, EvidenceTypeAssessment:
		return true
	}
	return false
}

// EvidenceLink ties a snapshot to an observation, portfolio artifact or assessment.
type EvidenceLink struct {
	ID             string       `db:"id" json:"id"`
	SnapshotID     string       `db:"snapshot_id" json:"snapshot_id"`
	EvidenceID     string       `db:"evidence_id" json:"evidence_id"`
	EvidenceType   EvidenceType `db:"evidence_type" json:"evidence_type"`
	OrganizationID string       `db:"organization_id" json:"organization_id"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}
