package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/melodia-health/melodia-api/internal/models"
	"github.com/melodia-health/melodia-api/pkg/config"
	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

type mockScheduleRepo struct {
	active    *models.Schedule
	byID      map[string]*models.Schedule
	inserted  *models.Schedule
	updated   *models.Schedule
	deactived []string
	insertErr error
}

func (m *mockScheduleRepo) ActiveByPatient(_ context.Context, _ string) (*models.Schedule, error) {
	if m.active == nil {
		return nil, sql.ErrNoRows
	}
	return m.active, nil
}

func (m *mockScheduleRepo) FindByID(_ context.Context, id string) (*models.Schedule, error) {
	schedule, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return schedule, nil
}

func (m *mockScheduleRepo) ListByPatient(_ context.Context, _ string) ([]models.Schedule, error) {
	out := make([]models.Schedule, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockScheduleRepo) Insert(_ context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	stored := *schedule
	stored.ID = "schedule-new"
	m.inserted = &stored
	return &stored, nil
}

func (m *mockScheduleRepo) Update(_ context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	stored := *schedule
	m.updated = &stored
	return &stored, nil
}

func (m *mockScheduleRepo) Deactivate(_ context.Context, id string) error {
	m.deactived = append(m.deactived, id)
	return nil
}

func onboardingDefaults() config.OnboardingConfig {
	return config.OnboardingConfig{
		DefaultScheduleWeeks:     8,
		DefaultSessionFrequency:  1,
		DefaultSessionUnit:       "daily",
		DefaultSurveyFrequency:   1,
		DefaultSurveyUnit:        "weekly",
		DefaultActiveWeekdays:    []int{1, 2, 3, 4, 5},
		DefaultExpectedSessions:  40,
		AutoCreateScheduleOnJoin: true,
	}
}

func TestScheduleCreate(t *testing.T) {
	repo := &mockScheduleRepo{}
	svc := NewScheduleService(repo, nil, onboardingDefaults(), nil, zap.NewNop())

	created, err := svc.Create(context.Background(), CreateScheduleRequest{
		PatientID:             testPatientID,
		StartDate:             "2026-03-02",
		TotalWeeks:            4,
		ActiveWeekdays:        []int{5, 1, 3, 1},
		SessionFrequency:      2,
		SessionFrequencyUnit:  "Daily",
		SurveyFrequency:       1,
		SurveyFrequencyUnit:   "weekly",
		TotalExpectedSessions: 24,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 29, 0, 0, 0, 0, time.UTC), created.EndDate)
	assert.Equal(t, models.WeekdaySet{time.Monday, time.Wednesday, time.Friday}, created.ActiveWeekdays)
	assert.Equal(t, models.FrequencyDaily, created.SessionFrequencyUnit)
	assert.True(t, created.Active)
}

func TestScheduleCreateRejectsBadUnit(t *testing.T) {
	svc := NewScheduleService(&mockScheduleRepo{}, nil, onboardingDefaults(), nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateScheduleRequest{
		PatientID:             testPatientID,
		StartDate:             "2026-03-02",
		TotalWeeks:            4,
		ActiveWeekdays:        []int{1},
		SessionFrequency:      1,
		SessionFrequencyUnit:  "fortnightly",
		SurveyFrequency:       1,
		SurveyFrequencyUnit:   "weekly",
		TotalExpectedSessions: 24,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleCreateDefault(t *testing.T) {
	repo := &mockScheduleRepo{}
	svc := NewScheduleService(repo, nil, onboardingDefaults(), nil, zap.NewNop())

	enrolled := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	created, err := svc.CreateDefault(context.Background(), testPatientID, enrolled)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), created.StartDate)
	assert.Equal(t, 8, created.TotalWeeks)
	assert.Equal(t, 5, created.ActiveWeekdays.Count())
	assert.Equal(t, 40, created.TotalExpectedSessions)
	assert.Equal(t, models.FrequencyWeekly, created.SurveyFrequencyUnit)
}

func TestScheduleUpdateRecomputesEndDate(t *testing.T) {
	existing := dailySchedule()
	repo := &mockScheduleRepo{byID: map[string]*models.Schedule{existing.ID: existing}}
	svc := NewScheduleService(repo, nil, onboardingDefaults(), nil, zap.NewNop())

	weeks := 12
	updated, err := svc.Update(context.Background(), existing.ID, UpdateScheduleRequest{TotalWeeks: &weeks})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.TotalWeeks)
	assert.Equal(t, existing.StartDate.AddDate(0, 0, 12*7-1), updated.EndDate)
}

func TestScheduleDeactivate(t *testing.T) {
	existing := dailySchedule()
	repo := &mockScheduleRepo{byID: map[string]*models.Schedule{existing.ID: existing}}
	invalidator := &mockInvalidator{}
	svc := NewScheduleService(repo, invalidator, onboardingDefaults(), nil, zap.NewNop())

	require.NoError(t, svc.Deactivate(context.Background(), existing.ID))
	assert.Equal(t, []string{existing.ID}, repo.deactived)
	assert.Len(t, invalidator.calls, 1)
}

func TestScheduleDeactivateAlreadyInactive(t *testing.T) {
	existing := dailySchedule()
	existing.Active = false
	repo := &mockScheduleRepo{byID: map[string]*models.Schedule{existing.ID: existing}}
	svc := NewScheduleService(repo, nil, onboardingDefaults(), nil, zap.NewNop())

	err := svc.Deactivate(context.Background(), existing.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestScheduleActiveNotFound(t *testing.T) {
	svc := NewScheduleService(&mockScheduleRepo{}, nil, onboardingDefaults(), nil, zap.NewNop())

	_, err := svc.Active(context.Background(), testPatientID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
