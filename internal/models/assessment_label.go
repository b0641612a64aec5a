package models

import "time"

// AssessmentLabelSet groups the labels an organization uses on assessments.
type AssessmentLabelSet struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	Name           string     `db:"name" json:"name"`
	Description    *string    `db:"description" json:"description,omitempty"`
	ArchivedAt     *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// AssessmentLabel is a single ordered label inside a set.
type AssessmentLabel struct {
	ID             string     `db:"id" json:"id"`
	SetID          string     `db:"set_id" json:"set_id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	Label          string     `db:"label" json:"label"`
	Description    *string    `db:"description" json:"description,omitempty"`
	DisplayOrder   int        `db:"display_order" json:"display_order"`
	ArchivedAt     *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
