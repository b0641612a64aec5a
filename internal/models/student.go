package models

import "time"

// Student represents a learner enrolled in one of the organization's schools.
type Student struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	SchoolID       *string    `db:"school_id" json:"school_id,omitempty"`
	StudentNumber  string     `db:"student_number" json:"student_number"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	GradeLevel     string     `db:"grade_level" json:"grade_level"`
	Status         string     `db:"status" json:"status"`
	EnrolledAt     *time.Time `db:"enrolled_at" json:"enrolled_at,omitempty"`
	GuardianEmail  *string    `db:"guardian_email" json:"guardian_email,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for exporting students.
type StudentFilter struct {
	OrganizationID string
	SchoolID       string
	GradeLevel     string
	Status         string
	SortBy         string
	SortOrder      string
}
