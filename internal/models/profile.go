package models

import "time"

// Profile is the organizational identity record attached to an auth user.
type Profile struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	SchoolID       *string   `db:"school_id" json:"school_id,omitempty"`
	Role           string    `db:"role" json:"role"`
	FullName       string    `db:"full_name" json:"full_name"`
	Email          string    `db:"email" json:"email"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Identity is the resolved caller of a request: verified token subject plus profile.
type Identity struct {
	UserID         string  `json:"user_id"`
	OrganizationID string  `json:"organization_id"`
	SchoolID       *string `json:"school_id,omitempty"`
	Role           Role    `json:"role"`
	Email          string  `json:"email"`
	FullName       string  `json:"full_name"`
}

