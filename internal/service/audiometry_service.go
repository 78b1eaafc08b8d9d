package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/melodia-health/melodia-api/internal/engine"
	"github.com/melodia-health/melodia-api/internal/models"
	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

type audiogramRepository interface {
	Upsert(ctx context.Context, record *models.AudiometricRecord) (*models.AudiometricRecord, error)
	FindByID(ctx context.Context, id string) (*models.AudiometricRecord, error)
	List(ctx context.Context, filter models.AudiogramFilter) ([]models.AudiometricRecord, error)
}

// AudiometryService records hearing-test results and derives the pure-tone
// averages from the raw thresholds. The stored averages always reflect the
// thresholds of the latest write for a (patient, date, ear, conduction) key.
type AudiometryService struct {
	repo      audiogramRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAudiometryService constructs the audiometry service.
func NewAudiometryService(repo audiogramRepository, validate *validator.Validate, logger *zap.Logger) *AudiometryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AudiometryService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("ear_side", func(fl validator.FieldLevel) bool {
		return models.EarSide(strings.ToLower(fl.Field().String())).Valid()
	})
	svc.validator.RegisterValidation("conduction_type", func(fl validator.FieldLevel) bool {
		return models.ConductionType(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// RecordAudiogramRequest is the payload for storing a hearing test. The
// thresholds map is keyed by frequency in Hz; values are dB HL.
type RecordAudiogramRequest struct {
	PatientID  string          `json:"patient_id" validate:"required,uuid4"`
	TestDate   string          `json:"test_date" validate:"required"`
	Ear        string          `json:"ear" validate:"required,ear_side"`
	Conduction string          `json:"conduction" validate:"required,conduction_type"`
	Thresholds map[int]float64 `json:"thresholds" validate:"required,min=1"`
}

// AudiogramListRequest filters the audiogram listing.
type AudiogramListRequest struct {
	PatientID  string  `json:"patient_id" validate:"required,uuid4"`
	Ear        *string `json:"ear" validate:"omitempty,ear_side"`
	Conduction *string `json:"conduction" validate:"omitempty,conduction_type"`
	DateFrom   *string `json:"date_from"`
	DateTo     *string `json:"date_to"`
}

// Record stores an audiogram, computing both pure-tone averages from the
// submitted thresholds. Writing the same (patient, date, ear, conduction)
// key again replaces the thresholds and recomputes the averages.
func (s *AudiometryService) Record(ctx context.Context, req RecordAudiogramRequest) (*models.AudiometricRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid audiogram payload")
	}
	testDate, err := parseDate(req.TestDate)
	if err != nil {
		return nil, err
	}
	for freq := range req.Thresholds {
		if !knownFrequency(freq) {
			s.logger.Debug("ignoring unsupported frequency", zap.Int("frequency_hz", freq))
		}
	}

	averages, err := engine.ComputeAudiometricAverages(req.Thresholds)
	if err != nil {
		return nil, err
	}

	record := &models.AudiometricRecord{
		PatientID:   req.PatientID,
		TestDate:    testDate,
		Ear:         models.EarSide(strings.ToLower(req.Ear)),
		Conduction:  models.ConductionType(strings.ToLower(req.Conduction)),
		Thresholds:  req.Thresholds,
		FourFreqAvg: averages.FourFrequency,
		SixFreqAvg:  averages.SixFrequency,
	}

	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store audiogram")
	}
	s.logger.Info("audiogram recorded",
		zap.String("patient_id", stored.PatientID),
		zap.String("ear", string(stored.Ear)),
		zap.Int("four_freq_avg", stored.FourFreqAvg),
		zap.Int("six_freq_avg", stored.SixFreqAvg))
	return stored, nil
}

// Get returns one audiogram by id.
func (s *AudiometryService) Get(ctx context.Context, id string) (*models.AudiometricRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "audiogram not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load audiogram")
	}
	return record, nil
}

// List returns a patient's audiograms matching the filter.
func (s *AudiometryService) List(ctx context.Context, req AudiogramListRequest) ([]models.AudiometricRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid audiogram filter")
	}

	filter := models.AudiogramFilter{PatientID: req.PatientID}
	if req.Ear != nil {
		ear := models.EarSide(strings.ToLower(*req.Ear))
		filter.Ear = &ear
	}
	if req.Conduction != nil {
		conduction := models.ConductionType(strings.ToLower(*req.Conduction))
		filter.Conduction = &conduction
	}
	if req.DateFrom != nil {
		from, err := parseDate(*req.DateFrom)
		if err != nil {
			return nil, err
		}
		filter.DateFrom = &from
	}
	if req.DateTo != nil {
		to, err := parseDate(*req.DateTo)
		if err != nil {
			return nil, err
		}
		filter.DateTo = &to
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list audiograms")
	}
	return records, nil
}

func knownFrequency(freq int) bool {
	for _, f := range models.AudiogramFrequencies {
		if f == freq {
			return true
		}
	}
	return false
}
