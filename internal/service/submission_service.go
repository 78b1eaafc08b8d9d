package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/melodia-health/melodia-api/internal/engine"
	"github.com/melodia-health/melodia-api/internal/models"
	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

const defaultSubmissionRetries = 3

type activityRepository interface {
	CompletedCountOn(ctx context.Context, patientID string, date time.Time, kind models.ActivityKind) (int, error)
	InsertWithScore(ctx context.Context, record *models.ActivityRecord, score *models.Score) (*models.ActivityRecord, *models.Score, error)
	Complete(ctx context.Context, id string, durationMinutes *int, notes *string, completedAt time.Time) (*models.ActivityRecord, error)
	FindByID(ctx context.Context, id string) (*models.ActivityRecord, error)
	ScoreByActivity(ctx context.Context, activityID string) (*models.Score, error)
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityRecord, int, error)
}

type activeScheduleLookup interface {
	ActiveByPatient(ctx context.Context, patientID string) (*models.Schedule, error)
}

type progressInvalidator interface {
	Invalidate(ctx context.Context, patientID string)
}

// SubmissionService records therapy sessions and questionnaire submissions
// against a patient's active schedule.
type SubmissionService struct {
	activityRepo activityRepository
	scheduleRepo activeScheduleLookup
	progress     progressInvalidator
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	maxRetries   int
	now          func() time.Time
}

// NewSubmissionService constructs the submission service. maxRetries bounds
// how often a write is re-attempted after losing a same-day sequence race.
func NewSubmissionService(activities activityRepository, schedules activeScheduleLookup, progress progressInvalidator, metrics *MetricsService, maxRetries int, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 1 {
		maxRetries = defaultSubmissionRetries
	}
	svc := &SubmissionService{
		activityRepo: activities,
		scheduleRepo: schedules,
		progress:     progress,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		maxRetries:   maxRetries,
		now:          time.Now,
	}
	svc.validator.RegisterValidation("activity_kind", func(fl validator.FieldLevel) bool {
		return models.ActivityKind(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// SubmitSessionRequest is the payload for recording a therapy session.
type SubmitSessionRequest struct {
	PatientID       string  `json:"patient_id" validate:"required,uuid4"`
	SessionType     string  `json:"session_type" validate:"required,min=1,max=100"`
	Date            string  `json:"date" validate:"required"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,gte=0,lte=600"`
	Notes           *string `json:"notes" validate:"omitempty,max=2000"`
	Completed       bool    `json:"completed"`
}

// SubmitSurveyRequest is the payload for recording a questionnaire. The
// responses are scored at submission time and the score is persisted with
// the activity record.
type SubmitSurveyRequest struct {
	PatientID  string `json:"patient_id" validate:"required,uuid4"`
	SurveyType string `json:"survey_type" validate:"required,min=1,max=100"`
	Date       string `json:"date" validate:"required"`
	Responses  []int  `json:"responses" validate:"required,min=1,dive,gte=0"`
}

// CompleteActivityRequest marks a previously recorded activity as completed.
type CompleteActivityRequest struct {
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,gte=0,lte=600"`
	Notes           *string `json:"notes" validate:"omitempty,max=2000"`
}

// SubmissionResult pairs the stored record with its score, if any.
type SubmissionResult struct {
	Activity *models.ActivityRecord `json:"activity"`
	Score    *models.Score          `json:"score,omitempty"`
}

// ActivityListRequest filters the activity history listing.
type ActivityListRequest struct {
	PatientID string  `json:"patient_id" validate:"required,uuid4"`
	Kind      *string `json:"kind" validate:"omitempty,activity_kind"`
	DateFrom  *string `json:"date_from"`
	DateTo    *string `json:"date_to"`
	Completed *bool   `json:"completed"`
	Page      int     `json:"page"`
	PageSize  int     `json:"page_size"`
	SortBy    string  `json:"sort_by"`
	SortOrder string  `json:"sort_order"`
}

// SubmitSession validates the session against the patient's active schedule
// and records it.
func (s *SubmissionService) SubmitSession(ctx context.Context, req SubmitSessionRequest) (*SubmissionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session submission")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	record := &models.ActivityRecord{
		PatientID:       req.PatientID,
		Kind:            models.KindSession,
		ActivityType:    req.SessionType,
		ActivityDate:    date,
		Completed:       req.Completed,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	}
	if req.Completed {
		completedAt := s.now().UTC()
		record.CompletedAt = &completedAt
	}

	return s.submit(ctx, record, nil)
}

// SubmitSurvey validates the questionnaire against the patient's active
// schedule, scores the responses, and records both atomically. Surveys are
// complete by definition once submitted.
func (s *SubmissionService) SubmitSurvey(ctx context.Context, req SubmitSurveyRequest) (*SubmissionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid survey submission")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	surveyScore, err := engine.ScoreSurvey(req.SurveyType, req.Responses)
	if err != nil {
		return nil, err
	}
	breakdown, err := json.Marshal(surveyScore.Breakdown)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrComputation.Code, appErrors.ErrComputation.Status, "encode score breakdown")
	}

	completedAt := s.now().UTC()
	record := &models.ActivityRecord{
		PatientID:    req.PatientID,
		Kind:         models.KindSurvey,
		ActivityType: req.SurveyType,
		ActivityDate: date,
		Completed:    true,
		CompletedAt:  &completedAt,
	}
	score := &models.Score{
		InstrumentType:   strings.ToUpper(strings.TrimSpace(req.SurveyType)),
		TotalScore:       surveyScore.TotalScore,
		MaxPossibleScore: surveyScore.MaxPossibleScore,
		PercentageScore:  surveyScore.PercentageScore,
		Breakdown:        breakdown,
	}

	result, err := s.submit(ctx, record, score)
	if err == nil {
		s.metrics.RecordSurveyScored(score.InstrumentType)
	}
	return result, err
}

// submit runs the evaluate-then-insert loop. Losing the same-day sequence
// race to a concurrent writer surfaces as ErrSequenceConflict from the
// repository; the count is re-read and the schedule re-evaluated so the
// daily limit holds even under contention.
func (s *SubmissionService) submit(ctx context.Context, record *models.ActivityRecord, score *models.Score) (*SubmissionResult, error) {
	schedule, err := s.activeSchedule(ctx, record.PatientID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		count, err := s.activityRepo.CompletedCountOn(ctx, record.PatientID, record.ActivityDate, record.Kind)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "count recorded activities")
		}

		eligibility, err := engine.EvaluateSubmission(schedule, record.Kind, record.ActivityType, record.ActivityDate, count)
		if err != nil {
			return nil, err
		}
		if !eligibility.Eligible {
			s.metrics.RecordSubmission(string(record.Kind), string(eligibility.Reason))
			return nil, rejectionError(eligibility.Reason)
		}

		record.Sequence = eligibility.NextSequence
		stored, storedScore, err := s.activityRepo.InsertWithScore(ctx, record, score)
		if err == nil {
			s.metrics.RecordSubmission(string(record.Kind), "accepted")
			if s.progress != nil {
				s.progress.Invalidate(ctx, record.PatientID)
			}
			s.logger.Info("activity recorded",
				zap.String("patient_id", record.PatientID),
				zap.String("kind", string(record.Kind)),
				zap.String("activity_type", record.ActivityType),
				zap.Int("sequence", record.Sequence))
			return &SubmissionResult{Activity: stored, Score: storedScore}, nil
		}
		if !errors.Is(err, appErrors.ErrSequenceConflict) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store activity")
		}
		s.logger.Warn("sequence conflict, retrying",
			zap.String("patient_id", record.PatientID),
			zap.Int("attempt", attempt))
	}

	s.metrics.RecordSubmission(string(record.Kind), "sequence_conflict")
	return nil, appErrors.Clone(appErrors.ErrSequenceConflict, "submission lost concurrent sequence race, retry")
}

// Complete marks an existing activity record as completed, stamping
// completion metadata.
func (s *SubmissionService) Complete(ctx context.Context, activityID string, req CompleteActivityRequest) (*models.ActivityRecord, error) {
	if activityID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "activity id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}

	existing, err := s.activityRepo.FindByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load activity")
	}
	if existing.Completed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "activity is already completed")
	}

	updated, err := s.activityRepo.Complete(ctx, activityID, req.DurationMinutes, req.Notes, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "complete activity")
	}
	if s.progress != nil {
		s.progress.Invalidate(ctx, updated.PatientID)
	}
	return updated, nil
}

// Get returns one activity record together with its score, when present.
func (s *SubmissionService) Get(ctx context.Context, activityID string) (*SubmissionResult, error) {
	record, err := s.activityRepo.FindByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load activity")
	}
	result := &SubmissionResult{Activity: record}
	score, err := s.activityRepo.ScoreByActivity(ctx, activityID)
	if err == nil {
		result.Score = score
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load score")
	}
	return result, nil
}

// List returns a patient's activity history.
func (s *SubmissionService) List(ctx context.Context, req ActivityListRequest) ([]models.ActivityRecord, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity filter")
	}

	filter := models.ActivityFilter{
		PatientID: req.PatientID,
		Completed: req.Completed,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if req.Kind != nil {
		kind := models.ActivityKind(strings.ToLower(*req.Kind))
		filter.Kind = &kind
	}
	if req.DateFrom != nil {
		from, err := parseDate(*req.DateFrom)
		if err != nil {
			return nil, nil, err
		}
		filter.DateFrom = &from
	}
	if req.DateTo != nil {
		to, err := parseDate(*req.DateTo)
		if err != nil {
			return nil, nil, err
		}
		filter.DateTo = &to
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	records, total, err := s.activityRepo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list activities")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return records, pagination, nil
}

func (s *SubmissionService) activeSchedule(ctx context.Context, patientID string) (*models.Schedule, error) {
	schedule, err := s.scheduleRepo.ActiveByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load active schedule")
	}
	return schedule, nil
}

func rejectionError(reason engine.RejectionReason) error {
	switch reason {
	case engine.ReasonInactiveDay:
		return appErrors.ErrInactiveDay
	case engine.ReasonTypeNotAllowed:
		return appErrors.ErrTypeNotAllowed
	case engine.ReasonDailyLimitReached:
		return appErrors.ErrDailyLimitReached
	default:
		return appErrors.ErrConflict
	}
}

func parseDate(value string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", value))
	}
	return date.UTC(), nil
}
