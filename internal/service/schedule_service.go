package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/melodia-health/melodia-api/internal/models"
	"github.com/melodia-health/melodia-api/pkg/config"
	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

type scheduleRepository interface {
	ActiveByPatient(ctx context.Context, patientID string) (*models.Schedule, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	ListByPatient(ctx context.Context, patientID string) ([]models.Schedule, error)
	Insert(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error)
	Update(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error)
	Deactivate(ctx context.Context, id string) error
}

// ScheduleService manages activity prescriptions. Creating a schedule for a
// patient deactivates any prior active one; schedules are never deleted so
// historical submissions keep their context.
type ScheduleService struct {
	repo       scheduleRepository
	progress   progressInvalidator
	onboarding config.OnboardingConfig
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewScheduleService constructs the schedule service.
func NewScheduleService(repo scheduleRepository, progress progressInvalidator, onboarding config.OnboardingConfig, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ScheduleService{repo: repo, progress: progress, onboarding: onboarding, validator: validate, logger: logger}
	svc.validator.RegisterValidation("frequency_unit", func(fl validator.FieldLevel) bool {
		return models.FrequencyUnit(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// CreateScheduleRequest is the payload for prescribing a new schedule.
type CreateScheduleRequest struct {
	PatientID             string   `json:"patient_id" validate:"required,uuid4"`
	StartDate             string   `json:"start_date" validate:"required"`
	TotalWeeks            int      `json:"total_weeks" validate:"required,gte=1,lte=104"`
	ActiveWeekdays        []int    `json:"active_weekdays" validate:"required,min=1,max=7,dive,gte=0,lte=6"`
	SessionFrequency      int      `json:"session_frequency" validate:"required,gte=1"`
	SessionFrequencyUnit  string   `json:"session_frequency_unit" validate:"required,frequency_unit"`
	SurveyFrequency       int      `json:"survey_frequency" validate:"required,gte=1"`
	SurveyFrequencyUnit   string   `json:"survey_frequency_unit" validate:"required,frequency_unit"`
	AllowedSessionTypes   []string `json:"allowed_session_types" validate:"omitempty,dive,min=1,max=100"`
	AllowedSurveyTypes    []string `json:"allowed_survey_types" validate:"omitempty,dive,min=1,max=100"`
	TotalExpectedSessions int      `json:"total_expected_sessions" validate:"required,gte=1"`
}

// UpdateScheduleRequest carries partial schedule updates.
type UpdateScheduleRequest struct {
	TotalWeeks            *int      `json:"total_weeks" validate:"omitempty,gte=1,lte=104"`
	ActiveWeekdays        *[]int    `json:"active_weekdays" validate:"omitempty,min=1,max=7,dive,gte=0,lte=6"`
	SessionFrequency      *int      `json:"session_frequency" validate:"omitempty,gte=1"`
	SessionFrequencyUnit  *string   `json:"session_frequency_unit" validate:"omitempty,frequency_unit"`
	SurveyFrequency       *int      `json:"survey_frequency" validate:"omitempty,gte=1"`
	SurveyFrequencyUnit   *string   `json:"survey_frequency_unit" validate:"omitempty,frequency_unit"`
	AllowedSessionTypes   *[]string `json:"allowed_session_types" validate:"omitempty,dive,min=1,max=100"`
	AllowedSurveyTypes    *[]string `json:"allowed_survey_types" validate:"omitempty,dive,min=1,max=100"`
	TotalExpectedSessions *int      `json:"total_expected_sessions" validate:"omitempty,gte=1"`
}

// Create prescribes a new schedule; the repository atomically retires any
// prior active schedule for the patient.
func (s *ScheduleService) Create(ctx context.Context, req CreateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return nil, err
	}

	weekdays := toWeekdaySet(req.ActiveWeekdays)
	if weekdays.Count() == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one active weekday is required")
	}

	schedule := &models.Schedule{
		PatientID:             req.PatientID,
		StartDate:             start,
		EndDate:               scheduleEndDate(start, req.TotalWeeks),
		TotalWeeks:            req.TotalWeeks,
		ActiveWeekdays:        weekdays,
		SessionFrequency:      req.SessionFrequency,
		SessionFrequencyUnit:  models.FrequencyUnit(strings.ToLower(req.SessionFrequencyUnit)),
		SurveyFrequency:       req.SurveyFrequency,
		SurveyFrequencyUnit:   models.FrequencyUnit(strings.ToLower(req.SurveyFrequencyUnit)),
		AllowedSessionTypes:   normalizeTypes(req.AllowedSessionTypes),
		AllowedSurveyTypes:    normalizeTypes(req.AllowedSurveyTypes),
		TotalExpectedSessions: req.TotalExpectedSessions,
		Active:                true,
	}

	created, err := s.repo.Insert(ctx, schedule)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store schedule")
	}
	if s.progress != nil {
		s.progress.Invalidate(ctx, created.PatientID)
	}
	s.logger.Info("schedule created",
		zap.String("schedule_id", created.ID),
		zap.String("patient_id", created.PatientID),
		zap.Int("total_weeks", created.TotalWeeks))
	return created, nil
}

// CreateDefault prescribes the onboarding default schedule for a newly
// enrolled patient, starting at enrolledAt's date.
func (s *ScheduleService) CreateDefault(ctx context.Context, patientID string, enrolledAt time.Time) (*models.Schedule, error) {
	start := time.Date(enrolledAt.Year(), enrolledAt.Month(), enrolledAt.Day(), 0, 0, 0, 0, time.UTC)
	schedule := &models.Schedule{
		PatientID:             patientID,
		StartDate:             start,
		EndDate:               scheduleEndDate(start, s.onboarding.DefaultScheduleWeeks),
		TotalWeeks:            s.onboarding.DefaultScheduleWeeks,
		ActiveWeekdays:        toWeekdaySet(s.onboarding.DefaultActiveWeekdays),
		SessionFrequency:      s.onboarding.DefaultSessionFrequency,
		SessionFrequencyUnit:  models.FrequencyUnit(s.onboarding.DefaultSessionUnit),
		SurveyFrequency:       s.onboarding.DefaultSurveyFrequency,
		SurveyFrequencyUnit:   models.FrequencyUnit(s.onboarding.DefaultSurveyUnit),
		TotalExpectedSessions: s.onboarding.DefaultExpectedSessions,
		Active:                true,
	}

	created, err := s.repo.Insert(ctx, schedule)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store default schedule")
	}
	s.logger.Info("default schedule created",
		zap.String("schedule_id", created.ID),
		zap.String("patient_id", patientID))
	return created, nil
}

// Get returns one schedule by id.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load schedule")
	}
	return schedule, nil
}

// Active returns the patient's active schedule, or NOT_FOUND when none.
func (s *ScheduleService) Active(ctx context.Context, patientID string) (*models.Schedule, error) {
	schedule, err := s.repo.ActiveByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient has no active schedule")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load active schedule")
	}
	return schedule, nil
}

// History lists all schedules ever prescribed for the patient.
func (s *ScheduleService) History(ctx context.Context, patientID string) ([]models.Schedule, error) {
	if patientID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "patient id is required")
	}
	schedules, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list schedules")
	}
	return schedules, nil
}

// Update applies partial changes to a schedule.
func (s *ScheduleService) Update(ctx context.Context, id string, req UpdateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule update")
	}

	schedule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.TotalWeeks != nil {
		schedule.TotalWeeks = *req.TotalWeeks
		schedule.EndDate = scheduleEndDate(schedule.StartDate, schedule.TotalWeeks)
	}
	if req.ActiveWeekdays != nil {
		weekdays := toWeekdaySet(*req.ActiveWeekdays)
		if weekdays.Count() == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "at least one active weekday is required")
		}
		schedule.ActiveWeekdays = weekdays
	}
	if req.SessionFrequency != nil {
		schedule.SessionFrequency = *req.SessionFrequency
	}
	if req.SessionFrequencyUnit != nil {
		schedule.SessionFrequencyUnit = models.FrequencyUnit(strings.ToLower(*req.SessionFrequencyUnit))
	}
	if req.SurveyFrequency != nil {
		schedule.SurveyFrequency = *req.SurveyFrequency
	}
	if req.SurveyFrequencyUnit != nil {
		schedule.SurveyFrequencyUnit = models.FrequencyUnit(strings.ToLower(*req.SurveyFrequencyUnit))
	}
	if req.AllowedSessionTypes != nil {
		schedule.AllowedSessionTypes = normalizeTypes(*req.AllowedSessionTypes)
	}
	if req.AllowedSurveyTypes != nil {
		schedule.AllowedSurveyTypes = normalizeTypes(*req.AllowedSurveyTypes)
	}
	if req.TotalExpectedSessions != nil {
		schedule.TotalExpectedSessions = *req.TotalExpectedSessions
	}

	updated, err := s.repo.Update(ctx, schedule)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update schedule")
	}
	if s.progress != nil {
		s.progress.Invalidate(ctx, updated.PatientID)
	}
	return updated, nil
}

// Deactivate retires a schedule without deleting it.
func (s *ScheduleService) Deactivate(ctx context.Context, id string) error {
	schedule, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !schedule.Active {
		return appErrors.Clone(appErrors.ErrConflict, "schedule is already inactive")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "deactivate schedule")
	}
	if s.progress != nil {
		s.progress.Invalidate(ctx, schedule.PatientID)
	}
	s.logger.Info("schedule deactivated", zap.String("schedule_id", id))
	return nil
}

func scheduleEndDate(start time.Time, totalWeeks int) time.Time {
	return start.AddDate(0, 0, totalWeeks*7-1)
}

func toWeekdaySet(days []int) models.WeekdaySet {
	set := make(models.WeekdaySet, 0, len(days))
	for _, d := range days {
		set = append(set, time.Weekday(d))
	}
	return set.Normalized()
}

func normalizeTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
