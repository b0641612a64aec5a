package models

import "time"

// Admission is an application for a place at one of the organization's schools.
type Admission struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	SchoolID       *string    `db:"school_id" json:"school_id,omitempty"`
	ApplicantName  string     `db:"applicant_name" json:"applicant_name"`
	GuardianName   string     `db:"guardian_name" json:"guardian_name"`
	GuardianEmail  *string    `db:"guardian_email" json:"guardian_email,omitempty"`
	GuardianPhone  *string    `db:"guardian_phone" json:"guardian_phone,omitempty"`
	GradeApplying  string     `db:"grade_applying" json:"grade_applying"`
	Status         string     `db:"status" json:"status"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	SubmittedAt    *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
}

// AdmissionFilter narrows an admissions export.
type AdmissionFilter struct {
	OrganizationID string
	SchoolID       string
	Status         string
}
