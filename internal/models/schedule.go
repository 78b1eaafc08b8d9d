package models

import (
	"strings"
	"time"
)

// FrequencyUnit expresses how a prescribed frequency is interpreted.
type FrequencyUnit string

const (
	FrequencyDaily   FrequencyUnit = "daily"
	FrequencyWeekly  FrequencyUnit = "weekly"
	FrequencyMonthly FrequencyUnit = "monthly"
)

// Valid returns true when the unit is a supported value.
func (u FrequencyUnit) Valid() bool {
	switch u {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

// ActivityKind distinguishes therapy sessions from questionnaire submissions.
type ActivityKind string

const (
	KindSession ActivityKind = "session"
	KindSurvey  ActivityKind = "survey"
)

// Valid returns true when the kind is a supported value.
func (k ActivityKind) Valid() bool {
	return k == KindSession || k == KindSurvey
}

// WeekdaySet holds the calendar weekdays a schedule is active on
// (Sunday=0 .. Saturday=6).
type WeekdaySet []time.Weekday

// Valid returns true when every member is a real weekday.
func (s WeekdaySet) Valid() bool {
	for _, d := range s {
		if d < time.Sunday || d > time.Saturday {
			return false
		}
	}
	return true
}

// Contains reports whether the set includes the given weekday.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	for _, member := range s {
		if member == d {
			return true
		}
	}
	return false
}

// Count returns the number of distinct weekdays in the set.
func (s WeekdaySet) Count() int {
	seen := [7]bool{}
	count := 0
	for _, d := range s {
		if d < time.Sunday || d > time.Saturday || seen[d] {
			continue
		}
		seen[d] = true
		count++
	}
	return count
}

// Normalized returns the set deduplicated and in ascending order.
func (s WeekdaySet) Normalized() WeekdaySet {
	seen := [7]bool{}
	for _, d := range s {
		if d >= time.Sunday && d <= time.Saturday {
			seen[d] = true
		}
	}
	out := make(WeekdaySet, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if seen[d] {
			out = append(out, d)
		}
	}
	return out
}

// Schedule prescribes a patient's activity plan. A patient has at most one
// active schedule at any time.
type Schedule struct {
	ID                    string        `db:"id" json:"id"`
	PatientID             string        `db:"patient_id" json:"patient_id"`
	StartDate             time.Time     `db:"start_date" json:"start_date"`
	EndDate               time.Time     `db:"end_date" json:"end_date"`
	TotalWeeks            int           `db:"total_weeks" json:"total_weeks"`
	ActiveWeekdays        WeekdaySet    `json:"active_weekdays"`
	SessionFrequency      int           `db:"session_frequency" json:"session_frequency"`
	SessionFrequencyUnit  FrequencyUnit `db:"session_frequency_unit" json:"session_frequency_unit"`
	SurveyFrequency       int           `db:"survey_frequency" json:"survey_frequency"`
	SurveyFrequencyUnit   FrequencyUnit `db:"survey_frequency_unit" json:"survey_frequency_unit"`
	AllowedSessionTypes   []string      `json:"allowed_session_types"`
	AllowedSurveyTypes    []string      `json:"allowed_survey_types"`
	TotalExpectedSessions int           `db:"total_expected_sessions" json:"total_expected_sessions"`
	Active                bool          `db:"active" json:"active"`
	CreatedAt             time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time     `db:"updated_at" json:"updated_at"`
}

// FrequencyFor returns the prescribed frequency and unit for the given kind.
func (s *Schedule) FrequencyFor(kind ActivityKind) (int, FrequencyUnit) {
	if kind == KindSurvey {
		return s.SurveyFrequency, s.SurveyFrequencyUnit
	}
	return s.SessionFrequency, s.SessionFrequencyUnit
}

// AllowedTypesFor returns the allowed activity-type subset for the given
// kind. An empty subset means the kind is unrestricted.
func (s *Schedule) AllowedTypesFor(kind ActivityKind) []string {
	if kind == KindSurvey {
		return s.AllowedSurveyTypes
	}
	return s.AllowedSessionTypes
}

// AllowsType reports whether the activity type passes the schedule's
// allowed-type subset for the kind. Matching is case-insensitive.
func (s *Schedule) AllowsType(kind ActivityKind, activityType string) bool {
	allowed := s.AllowedTypesFor(kind)
	if len(allowed) == 0 {
		return true
	}
	for _, t := range allowed {
		if strings.EqualFold(t, activityType) {
			return true
		}
	}
	return false
}

// ScheduleFilter defines query filters for listing schedules.
type ScheduleFilter struct {
	PatientID string
	Active    *bool
	Page      int
	PageSize  int
}
