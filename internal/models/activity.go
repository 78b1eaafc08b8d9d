package models

import "time"

// ActivityRecord is a submitted therapy session or questionnaire for one
// patient on one calendar date. Sequence is the same-day ordinal (1, 2, ...)
// assigned at creation and used for daily-limit accounting.
type ActivityRecord struct {
	ID              string       `db:"id" json:"id"`
	PatientID       string       `db:"patient_id" json:"patient_id"`
	Kind            ActivityKind `db:"kind" json:"kind"`
	ActivityType    string       `db:"activity_type" json:"activity_type"`
	ActivityDate    time.Time    `db:"activity_date" json:"activity_date"`
	Sequence        int          `db:"sequence" json:"sequence"`
	Completed       bool         `db:"completed" json:"completed"`
	DurationMinutes *int         `db:"duration_minutes" json:"duration_minutes,omitempty"`
	Notes           *string      `db:"notes" json:"notes,omitempty"`
	CompletedAt     *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// ActivityFilter defines query filters for listing activity records.
type ActivityFilter struct {
	PatientID string
	Kind      *ActivityKind
	DateFrom  *time.Time
	DateTo    *time.Time
	Completed *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Score is the persisted clinical score derived from an activity record's
// raw responses. Computed once at submission time.
type Score struct {
	ID               string    `db:"id" json:"id"`
	ActivityID       string    `db:"activity_id" json:"activity_id"`
	InstrumentType   string    `db:"instrument_type" json:"instrument_type"`
	TotalScore       int       `db:"total_score" json:"total_score"`
	MaxPossibleScore int       `db:"max_possible_score" json:"max_possible_score"`
	PercentageScore  float64   `db:"percentage_score" json:"percentage_score"`
	Breakdown        []byte    `db:"breakdown" json:"-"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
