package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodia-health/melodia-api/internal/models"
	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

func activeSchedule() *models.Schedule {
	return &models.Schedule{
		ID:                   "sched-1",
		PatientID:            "pat-1",
		ActiveWeekdays:       models.WeekdaySet{time.Monday, time.Wednesday, time.Friday},
		SessionFrequency:     2,
		SessionFrequencyUnit: models.FrequencyDaily,
		SurveyFrequency:      3,
		SurveyFrequencyUnit:  models.FrequencyWeekly,
		Active:               true,
	}
}

// 2024-11-11 is a Monday.
var monday = time.Date(2024, 11, 11, 0, 0, 0, 0, time.UTC)

func TestEvaluateSubmissionNoScheduleAlwaysEligible(t *testing.T) {
	for _, kind := range []models.ActivityKind{models.KindSession, models.KindSurvey} {
		result, err := EvaluateSubmission(nil, kind, "anything", monday.AddDate(0, 0, 5), 99)
		require.NoError(t, err)
		assert.True(t, result.Eligible)
		assert.Equal(t, 100, result.NextSequence)
	}
}

func TestEvaluateSubmissionInactiveDay(t *testing.T) {
	tuesday := monday.AddDate(0, 0, 1)
	result, err := EvaluateSubmission(activeSchedule(), models.KindSession, "guitar", tuesday, 0)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, ReasonInactiveDay, result.Reason)
}

func TestEvaluateSubmissionTypeNotAllowed(t *testing.T) {
	schedule := activeSchedule()
	schedule.AllowedSessionTypes = []string{"piano", "drums"}

	result, err := EvaluateSubmission(schedule, models.KindSession, "guitar", monday, 0)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, ReasonTypeNotAllowed, result.Reason)

	// Matching is case-insensitive; empty subsets are unrestricted.
	result, err = EvaluateSubmission(schedule, models.KindSession, "Piano", monday, 0)
	require.NoError(t, err)
	assert.True(t, result.Eligible)

	result, err = EvaluateSubmission(schedule, models.KindSurvey, "THI", monday, 0)
	require.NoError(t, err)
	assert.True(t, result.Eligible)
}

func TestEvaluateSubmissionDailyLimit(t *testing.T) {
	schedule := activeSchedule()

	// required-per-day = 2; the first two slots are eligible, the third is not.
	for recorded := 0; recorded < 2; recorded++ {
		result, err := EvaluateSubmission(schedule, models.KindSession, "guitar", monday, recorded)
		require.NoError(t, err)
		assert.True(t, result.Eligible)
		assert.Equal(t, recorded+1, result.NextSequence)
	}

	result, err := EvaluateSubmission(schedule, models.KindSession, "guitar", monday, 2)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, ReasonDailyLimitReached, result.Reason)
}

func TestEvaluateSubmissionSurveyWeeklyLimit(t *testing.T) {
	schedule := activeSchedule()

	// 3 surveys per week over 3 active days -> 1 per active day.
	result, err := EvaluateSubmission(schedule, models.KindSurvey, "THI", monday, 0)
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.Equal(t, 1, result.RequiredPerDay)

	result, err = EvaluateSubmission(schedule, models.KindSurvey, "THI", monday, 1)
	require.NoError(t, err)
	assert.Equal(t, ReasonDailyLimitReached, result.Reason)
}

func TestEvaluateSubmissionMisconfiguredSchedule(t *testing.T) {
	schedule := activeSchedule()
	schedule.ActiveWeekdays = models.WeekdaySet{}
	schedule.SessionFrequencyUnit = models.FrequencyWeekly

	// No active weekday ever matches, so the weekday gate fires before the
	// frequency resolution can fail.
	result, err := EvaluateSubmission(schedule, models.KindSession, "guitar", monday, 0)
	require.NoError(t, err)
	assert.Equal(t, ReasonInactiveDay, result.Reason)

	// With the date's weekday active but a weekly frequency and a
	// zero-count set, the configuration error surfaces.
	schedule.ActiveWeekdays = models.WeekdaySet{monday.Weekday(), monday.Weekday()}
	assert.Equal(t, 1, schedule.ActiveWeekdays.Count())
	schedule.SessionFrequency = 0
	_, err = EvaluateSubmission(schedule, models.KindSession, "guitar", monday, 0)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
