package models

import "time"

// Patient represents a research-program participant.
type Patient struct {
	ID          string     `db:"id" json:"id"`
	FullName    string     `db:"full_name" json:"full_name"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Diagnosis   *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	EnrolledAt  time.Time  `db:"enrolled_at" json:"enrolled_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// PatientFilter defines query filters for listing patients.
type PatientFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
