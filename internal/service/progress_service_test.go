package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/melodia-health/melodia-api/internal/models"
	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

type stubCacheRepo struct {
	store       map[string][]byte
	deleteCalls int
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.store == nil {
		return appErrors.ErrCacheMiss
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.deleteCalls++
	for key := range s.store {
		delete(s.store, key)
	}
	return nil
}

type mockCountRepo struct {
	sessionCounts []int
	surveyCounts  []int
	sessionCalls  int
	surveyCalls   int
}

func (m *mockCountRepo) CompletedCountInRange(_ context.Context, _ string, _, _ time.Time, kind models.ActivityKind) (int, error) {
	if kind == models.KindSurvey {
		idx := m.surveyCalls
		m.surveyCalls++
		if idx < len(m.surveyCounts) {
			return m.surveyCounts[idx], nil
		}
		return 0, nil
	}
	idx := m.sessionCalls
	m.sessionCalls++
	if idx < len(m.sessionCounts) {
		return m.sessionCounts[idx], nil
	}
	return 0, nil
}

func twoWeekSchedule() *models.Schedule {
	return &models.Schedule{
		ID:                    "schedule-1",
		PatientID:             testPatientID,
		StartDate:             time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:               time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		TotalWeeks:            2,
		ActiveWeekdays:        models.WeekdaySet{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
		SessionFrequency:      1,
		SessionFrequencyUnit:  models.FrequencyDaily,
		SurveyFrequency:       1,
		SurveyFrequencyUnit:   models.FrequencyWeekly,
		TotalExpectedSessions: 14,
		Active:                true,
	}
}

func TestProgressForPatientComputesAndCaches(t *testing.T) {
	schedules := &mockScheduleLookup{schedule: twoWeekSchedule()}
	counts := &mockCountRepo{sessionCounts: []int{5, 7}, surveyCounts: []int{1, 1}}
	cache := &stubCacheRepo{}
	svc := NewProgressService(schedules, counts, cache, nil, true, time.Minute, zap.NewNop())

	progress, err := svc.ForPatient(context.Background(), testPatientID)
	require.NoError(t, err)
	require.Len(t, progress.Weeks, 2)
	assert.Equal(t, 71, progress.Weeks[0].CompletionRate)
	assert.Equal(t, 12, progress.Overall.CompletedSessions)
	assert.Equal(t, 86, progress.Overall.CompletionPercentage)
	assert.Len(t, cache.store, 1)

	// Second read must come from the cache.
	again, err := svc.ForPatient(context.Background(), testPatientID)
	require.NoError(t, err)
	assert.Equal(t, progress.Overall, again.Overall)
	assert.Equal(t, 2, counts.sessionCalls)
}

func TestProgressForPatientCacheDisabled(t *testing.T) {
	schedules := &mockScheduleLookup{schedule: twoWeekSchedule()}
	counts := &mockCountRepo{}
	svc := NewProgressService(schedules, counts, nil, nil, false, time.Minute, zap.NewNop())

	_, err := svc.ForPatient(context.Background(), testPatientID)
	require.NoError(t, err)
	_, err = svc.ForPatient(context.Background(), testPatientID)
	require.NoError(t, err)
	assert.Equal(t, 4, counts.sessionCalls)
}

func TestProgressForPatientNoActiveSchedule(t *testing.T) {
	svc := NewProgressService(&mockScheduleLookup{}, &mockCountRepo{}, nil, nil, false, time.Minute, zap.NewNop())

	_, err := svc.ForPatient(context.Background(), testPatientID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestProgressInvalidateDropsCache(t *testing.T) {
	schedules := &mockScheduleLookup{schedule: twoWeekSchedule()}
	counts := &mockCountRepo{}
	cache := &stubCacheRepo{}
	svc := NewProgressService(schedules, counts, cache, nil, true, time.Minute, zap.NewNop())

	_, err := svc.ForPatient(context.Background(), testPatientID)
	require.NoError(t, err)
	require.Len(t, cache.store, 1)

	svc.Invalidate(context.Background(), testPatientID)
	assert.Equal(t, 1, cache.deleteCalls)
	assert.Empty(t, cache.store)

	// Next read recomputes.
	_, err = svc.ForPatient(context.Background(), testPatientID)
	require.NoError(t, err)
	assert.Equal(t, 4, counts.sessionCalls)
}
