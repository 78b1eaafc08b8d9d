package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/melodia-health/melodia-api/internal/engine"
	"github.com/melodia-health/melodia-api/internal/models"
	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
	"github.com/melodia-health/melodia-api/pkg/jobs"
)

type progressCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type progressCountRepository interface {
	CompletedCountInRange(ctx context.Context, patientID string, start, end time.Time, kind models.ActivityKind) (int, error)
}

// ProgressService aggregates weekly and overall adherence for a patient's
// active schedule, with an optional Redis cache in front of the
// computation.
type ProgressService struct {
	scheduleRepo activeScheduleLookup
	countRepo    progressCountRepository
	cache        progressCache
	metrics      *MetricsService
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
	refreshQueue *jobs.Queue
	now          func() time.Time
}

// NewProgressService constructs the progress service. cache may be nil, in
// which case every read recomputes.
func NewProgressService(schedules activeScheduleLookup, counts progressCountRepository, cache progressCache, metrics *MetricsService, cacheEnabled bool, cacheTTL time.Duration, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ProgressService{
		scheduleRepo: schedules,
		countRepo:    counts,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		cacheEnabled: cacheEnabled && cache != nil,
		cacheTTL:     cacheTTL,
		now:          time.Now,
	}
}

// StartRefreshQueue wires a background queue that recomputes and re-caches
// progress after submissions, so the next read is warm.
func (s *ProgressService) StartRefreshQueue(ctx context.Context, workers int) {
	if !s.cacheEnabled {
		return
	}
	s.refreshQueue = jobs.NewQueue("progress-refresh", func(ctx context.Context, task jobs.Task) error {
		patientID, ok := task.Payload.(string)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", task.Payload)
		}
		_, err := s.compute(ctx, patientID, true)
		if err != nil && !errors.Is(err, appErrors.ErrNotFound) {
			return err
		}
		return nil
	}, jobs.Options{Workers: workers, Logger: s.logger})
	s.refreshQueue.Start(ctx)
}

// StopRefreshQueue drains and stops the refresh queue.
func (s *ProgressService) StopRefreshQueue() {
	if s.refreshQueue != nil {
		s.refreshQueue.Stop()
	}
}

// ForPatient returns progress for the patient's active schedule, preferring
// the cache when enabled.
func (s *ProgressService) ForPatient(ctx context.Context, patientID string) (*engine.Progress, error) {
	if patientID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "patient id is required")
	}

	if s.cacheEnabled {
		started := s.now()
		var cached engine.Progress
		err := s.cache.Get(ctx, progressCacheKey(patientID), &cached)
		s.metrics.RecordCacheOperation(err == nil, s.now().Sub(started))
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("progress cache read failed", zap.String("patient_id", patientID), zap.Error(err))
		}
	}

	return s.compute(ctx, patientID, s.cacheEnabled)
}

// Invalidate drops any cached progress for the patient and, when the
// refresh queue runs, schedules a recompute.
func (s *ProgressService) Invalidate(ctx context.Context, patientID string) {
	if !s.cacheEnabled {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, progressCacheKey(patientID)); err != nil {
		s.logger.Warn("progress cache invalidation failed", zap.String("patient_id", patientID), zap.Error(err))
	}
	if s.refreshQueue != nil {
		if err := s.refreshQueue.Enqueue(jobs.Task{Kind: "progress-refresh", Payload: patientID}); err != nil {
			s.logger.Warn("progress refresh enqueue failed", zap.String("patient_id", patientID), zap.Error(err))
		}
	}
}

func (s *ProgressService) compute(ctx context.Context, patientID string, store bool) (*engine.Progress, error) {
	schedule, err := s.scheduleRepo.ActiveByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient has no active schedule")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load active schedule")
	}

	progress, err := engine.ComputeProgress(ctx, schedule, s.countRepo, s.now())
	if err != nil {
		return nil, err
	}

	if store && s.cacheEnabled {
		if err := s.cache.Set(ctx, progressCacheKey(patientID), progress, s.cacheTTL); err != nil {
			s.logger.Warn("progress cache write failed", zap.String("patient_id", patientID), zap.Error(err))
		}
	}
	return progress, nil
}

func progressCacheKey(patientID string) string {
	return fmt.Sprintf("progress:%s", patientID)
}
