package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/melodia-health/melodia-api/internal/models"
	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

type mockPatientRepo struct {
	patients map[string]*models.Patient
	inserted *models.Patient
}

func (m *mockPatientRepo) List(_ context.Context, _ models.PatientFilter) ([]models.Patient, int, error) {
	out := make([]models.Patient, 0, len(m.patients))
	for _, p := range m.patients {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockPatientRepo) FindByID(_ context.Context, id string) (*models.Patient, error) {
	patient, ok := m.patients[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return patient, nil
}

func (m *mockPatientRepo) Insert(_ context.Context, patient *models.Patient) (*models.Patient, error) {
	stored := *patient
	stored.ID = testPatientID
	m.inserted = &stored
	return &stored, nil
}

func (m *mockPatientRepo) Update(_ context.Context, patient *models.Patient) (*models.Patient, error) {
	stored := *patient
	return &stored, nil
}

type mockDefaultScheduler struct {
	calls int
	err   error
}

func (m *mockDefaultScheduler) CreateDefault(_ context.Context, patientID string, enrolledAt time.Time) (*models.Schedule, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &models.Schedule{ID: "schedule-default", PatientID: patientID}, nil
}

func TestEnrollCreatesDefaultSchedule(t *testing.T) {
	repo := &mockPatientRepo{}
	scheduler := &mockDefaultScheduler{}
	svc := NewPatientService(repo, scheduler, true, nil, zap.NewNop())

	patient, err := svc.Enroll(context.Background(), EnrollPatientRequest{FullName: "Ada Verdi"})
	require.NoError(t, err)
	assert.Equal(t, testPatientID, patient.ID)
	assert.Equal(t, 1, scheduler.calls)
	assert.False(t, patient.EnrolledAt.IsZero())
}

func TestEnrollWithoutAutoSchedule(t *testing.T) {
	repo := &mockPatientRepo{}
	scheduler := &mockDefaultScheduler{}
	svc := NewPatientService(repo, scheduler, false, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollPatientRequest{FullName: "Ada Verdi"})
	require.NoError(t, err)
	assert.Zero(t, scheduler.calls)
}

func TestEnrollSurvivesScheduleFailure(t *testing.T) {
	repo := &mockPatientRepo{}
	scheduler := &mockDefaultScheduler{err: errors.New("db down")}
	svc := NewPatientService(repo, scheduler, true, nil, zap.NewNop())

	patient, err := svc.Enroll(context.Background(), EnrollPatientRequest{FullName: "Ada Verdi"})
	require.NoError(t, err)
	assert.NotEmpty(t, patient.ID)
}

func TestEnrollValidatesName(t *testing.T) {
	svc := NewPatientService(&mockPatientRepo{}, nil, false, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollPatientRequest{FullName: ""})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPatientGetNotFound(t *testing.T) {
	svc := NewPatientService(&mockPatientRepo{}, nil, false, nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPatientUpdate(t *testing.T) {
	existing := &models.Patient{ID: testPatientID, FullName: "Ada Verdi"}
	repo := &mockPatientRepo{patients: map[string]*models.Patient{existing.ID: existing}}
	svc := NewPatientService(repo, nil, false, nil, zap.NewNop())

	name := "Ada Rossi"
	dob := "1987-06-15"
	updated, err := svc.Update(context.Background(), existing.ID, UpdatePatientRequest{FullName: &name, DateOfBirth: &dob})
	require.NoError(t, err)
	assert.Equal(t, "Ada Rossi", updated.FullName)
	require.NotNil(t, updated.DateOfBirth)
	assert.Equal(t, 1987, updated.DateOfBirth.Year())
}
