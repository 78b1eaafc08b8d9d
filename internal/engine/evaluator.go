package engine

import (
	"time"

	"github.com/melodia-health/melodia-api/internal/models"
)

// RejectionReason explains why a submission was refused by the schedule.
type RejectionReason string

const (
	ReasonInactiveDay       RejectionReason = "INACTIVE_DAY"
	ReasonTypeNotAllowed    RejectionReason = "TYPE_NOT_ALLOWED"
	ReasonDailyLimitReached RejectionReason = "DAILY_LIMIT_REACHED"
)

// Eligibility is the outcome of evaluating a proposed submission. When
// Eligible, NextSequence carries the same-day ordinal the new record should
// be written with (already-recorded count + 1).
type Eligibility struct {
	Eligible       bool            `json:"eligible"`
	Reason         RejectionReason `json:"reason,omitempty"`
	RequiredPerDay int             `json:"required_per_day"`
	NextSequence   int             `json:"next_sequence,omitempty"`
}

// EvaluateSubmission decides whether a new activity of the given kind and
// type may be recorded for the date, given the count of same-kind activities
// already recorded that day. A nil schedule means the patient is
// unrestricted and every submission is eligible.
func EvaluateSubmission(schedule *models.Schedule, kind models.ActivityKind, activityType string, date time.Time, recordedCount int) (Eligibility, error) {
	if schedule == nil {
		return Eligibility{Eligible: true, NextSequence: recordedCount + 1}, nil
	}

	if !schedule.ActiveWeekdays.Contains(date.Weekday()) {
		return Eligibility{Reason: ReasonInactiveDay}, nil
	}

	if !schedule.AllowsType(kind, activityType) {
		return Eligibility{Reason: ReasonTypeNotAllowed}, nil
	}

	frequency, unit := schedule.FrequencyFor(kind)
	required, err := ResolveRequiredPerDay(frequency, unit, schedule.ActiveWeekdays.Count())
	if err != nil {
		return Eligibility{}, err
	}

	if recordedCount >= required {
		return Eligibility{Reason: ReasonDailyLimitReached, RequiredPerDay: required}, nil
	}

	return Eligibility{Eligible: true, RequiredPerDay: required, NextSequence: recordedCount + 1}, nil
}
