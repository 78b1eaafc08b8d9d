package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/melodia-health/melodia-api/internal/models"
	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

type patientRepository interface {
	List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, int, error)
	FindByID(ctx context.Context, id string) (*models.Patient, error)
	Insert(ctx context.Context, patient *models.Patient) (*models.Patient, error)
	Update(ctx context.Context, patient *models.Patient) (*models.Patient, error)
}

type defaultScheduleCreator interface {
	CreateDefault(ctx context.Context, patientID string, enrolledAt time.Time) (*models.Schedule, error)
}

// PatientService manages participant enrollment.
type PatientService struct {
	repo               patientRepository
	schedules          defaultScheduleCreator
	autoCreateSchedule bool
	validator          *validator.Validate
	logger             *zap.Logger
	now                func() time.Time
}

// NewPatientService constructs the patient service. When autoCreateSchedule
// is set, enrolling a patient also prescribes the onboarding default
// schedule.
func NewPatientService(repo patientRepository, schedules defaultScheduleCreator, autoCreateSchedule bool, validate *validator.Validate, logger *zap.Logger) *PatientService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientService{
		repo:               repo,
		schedules:          schedules,
		autoCreateSchedule: autoCreateSchedule,
		validator:          validate,
		logger:             logger,
		now:                time.Now,
	}
}

// EnrollPatientRequest is the payload for enrolling a participant.
type EnrollPatientRequest struct {
	FullName    string  `json:"full_name" validate:"required,min=1,max=200"`
	DateOfBirth *string `json:"date_of_birth"`
	Diagnosis   *string `json:"diagnosis" validate:"omitempty,max=500"`
}

// UpdatePatientRequest carries partial patient updates.
type UpdatePatientRequest struct {
	FullName    *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	DateOfBirth *string `json:"date_of_birth"`
	Diagnosis   *string `json:"diagnosis" validate:"omitempty,max=500"`
}

// PatientListRequest filters the patient listing.
type PatientListRequest struct {
	Search    string `json:"search"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

// Enroll registers a patient and, when configured, prescribes the default
// schedule starting at enrollment.
func (s *PatientService) Enroll(ctx context.Context, req EnrollPatientRequest) (*models.Patient, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid patient payload")
	}

	patient := &models.Patient{
		FullName:   req.FullName,
		Diagnosis:  req.Diagnosis,
		EnrolledAt: s.now().UTC(),
	}
	if req.DateOfBirth != nil {
		dob, err := parseDate(*req.DateOfBirth)
		if err != nil {
			return nil, err
		}
		patient.DateOfBirth = &dob
	}

	created, err := s.repo.Insert(ctx, patient)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store patient")
	}

	if s.autoCreateSchedule && s.schedules != nil {
		if _, err := s.schedules.CreateDefault(ctx, created.ID, created.EnrolledAt); err != nil {
			// Enrollment stands; the clinician can prescribe manually.
			s.logger.Error("default schedule creation failed",
				zap.String("patient_id", created.ID), zap.Error(err))
		}
	}

	s.logger.Info("patient enrolled", zap.String("patient_id", created.ID))
	return created, nil
}

// Get returns one patient by id.
func (s *PatientService) Get(ctx context.Context, id string) (*models.Patient, error) {
	patient, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load patient")
	}
	return patient, nil
}

// List returns patients matching the filter.
func (s *PatientService) List(ctx context.Context, req PatientListRequest) ([]models.Patient, *models.Pagination, error) {
	filter := models.PatientFilter{
		Search:    req.Search,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	patients, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list patients")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return patients, pagination, nil
}

// Update applies partial changes to a patient.
func (s *PatientService) Update(ctx context.Context, id string, req UpdatePatientRequest) (*models.Patient, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid patient update")
	}

	patient, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		patient.FullName = *req.FullName
	}
	if req.DateOfBirth != nil {
		dob, err := parseDate(*req.DateOfBirth)
		if err != nil {
			return nil, err
		}
		patient.DateOfBirth = &dob
	}
	if req.Diagnosis != nil {
		patient.Diagnosis = req.Diagnosis
	}

	updated, err := s.repo.Update(ctx, patient)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update patient")
	}
	return updated, nil
}
