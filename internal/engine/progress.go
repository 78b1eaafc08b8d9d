package engine

import (
	"context"
	"math"
	"time"

	"github.com/melodia-health/melodia-api/internal/models"
)

// CountLookup returns the number of completed records of the given kind for
// a patient within [start, end] inclusive.
type CountLookup interface {
	CompletedCountInRange(ctx context.Context, patientID string, start, end time.Time, kind models.ActivityKind) (int, error)
}

// WeekProgress summarises one 7-day schedule window.
type WeekProgress struct {
	WeekNumber        int       `json:"week_number"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	ExpectedSessions  int       `json:"expected_sessions"`
	CompletedSessions int       `json:"completed_sessions"`
	CompletedSurveys  int       `json:"completed_surveys"`
	CompletionRate    int       `json:"completion_rate"`
	IsCurrentWeek     bool      `json:"is_current_week"`
	IsCurrentOrPast   bool      `json:"is_current_or_past"`
}

// OverallProgress summarises completion across the whole schedule. The
// percentage is intentionally not clamped; over-completion reads above 100.
type OverallProgress struct {
	TotalExpectedSessions int `json:"total_expected_sessions"`
	CompletedSessions     int `json:"completed_sessions"`
	CompletedSurveys      int `json:"completed_surveys"`
	CompletionPercentage  int `json:"completion_percentage"`
}

// Progress is the full aggregation result for one schedule.
type Progress struct {
	ScheduleID string          `json:"schedule_id"`
	PatientID  string          `json:"patient_id"`
	Overall    OverallProgress `json:"overall"`
	Weeks      []WeekProgress  `json:"weeks"`
}

// ComputeProgress partitions the schedule's date span into consecutive
// 7-day windows starting at the schedule start date, queries completed
// counts per window, and derives weekly and overall completion statistics.
// The final window is truncated to the schedule end date, and windows stop
// after TotalWeeks or once a window would start past the end date. today
// controls the is_current_week / is_current_or_past flags only.
func ComputeProgress(ctx context.Context, schedule *models.Schedule, counts CountLookup, today time.Time) (*Progress, error) {
	start := dateOnly(schedule.StartDate)
	end := dateOnly(schedule.EndDate)
	today = dateOnly(today)

	requiredPerDay := 0
	if schedule.SessionFrequency > 0 {
		var err error
		requiredPerDay, err = ResolveRequiredPerDay(schedule.SessionFrequency, schedule.SessionFrequencyUnit, schedule.ActiveWeekdays.Count())
		if err != nil {
			return nil, err
		}
	}

	progress := &Progress{ScheduleID: schedule.ID, PatientID: schedule.PatientID}
	totalSessions := 0
	totalSurveys := 0

	for week := 0; ; week++ {
		if schedule.TotalWeeks > 0 && week >= schedule.TotalWeeks {
			break
		}
		weekStart := start.AddDate(0, 0, week*7)
		if weekStart.After(end) {
			break
		}
		weekEnd := weekStart.AddDate(0, 0, 6)
		if weekEnd.After(end) {
			weekEnd = end
		}

		sessions, err := counts.CompletedCountInRange(ctx, schedule.PatientID, weekStart, weekEnd, models.KindSession)
		if err != nil {
			return nil, err
		}
		surveys, err := counts.CompletedCountInRange(ctx, schedule.PatientID, weekStart, weekEnd, models.KindSurvey)
		if err != nil {
			return nil, err
		}

		expected := 0
		for day := weekStart; !day.After(weekEnd); day = day.AddDate(0, 0, 1) {
			if schedule.ActiveWeekdays.Contains(day.Weekday()) {
				expected += requiredPerDay
			}
		}

		rate := 0
		if expected > 0 {
			rate = int(math.Round(float64(sessions) / float64(expected) * 100))
		}

		progress.Weeks = append(progress.Weeks, WeekProgress{
			WeekNumber:        week + 1,
			StartDate:         weekStart,
			EndDate:           weekEnd,
			ExpectedSessions:  expected,
			CompletedSessions: sessions,
			CompletedSurveys:  surveys,
			CompletionRate:    rate,
			IsCurrentWeek:     !today.Before(weekStart) && !today.After(weekEnd),
			IsCurrentOrPast:   !weekEnd.After(today),
		})

		totalSessions += sessions
		totalSurveys += surveys
	}

	overallPct := 0
	if schedule.TotalExpectedSessions > 0 {
		overallPct = int(math.Round(float64(totalSessions) / float64(schedule.TotalExpectedSessions) * 100))
	}
	progress.Overall = OverallProgress{
		TotalExpectedSessions: schedule.TotalExpectedSessions,
		CompletedSessions:     totalSessions,
		CompletedSurveys:      totalSurveys,
		CompletionPercentage:  overallPct,
	}

	return progress, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
