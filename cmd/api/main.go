package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/melodia-health/melodia-api/api/swagger"
	"github.com/melodia-health/melodia-api/internal/handler"
	"github.com/melodia-health/melodia-api/internal/repository"
	"github.com/melodia-health/melodia-api/internal/service"
	"github.com/melodia-health/melodia-api/pkg/cache"
	"github.com/melodia-health/melodia-api/pkg/config"
	"github.com/melodia-health/melodia-api/pkg/database"
	"github.com/melodia-health/melodia-api/pkg/logger"
	corsmiddleware "github.com/melodia-health/melodia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/melodia-health/melodia-api/pkg/middleware/requestid"
)

// @title Melodia API
// @version 0.1.0
// @description Adherence and scoring backend for the music therapy research program
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis connection failed, progress caching disabled", "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	patientRepo := repository.NewPatientRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	audiogramRepo := repository.NewAudiogramRepository(db)

	var cacheRepo *repository.CacheRepository
	cacheEnabled := cfg.Progress.CacheEnabled && redisClient != nil
	if cacheEnabled {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close()
	}

	progressSvc := service.NewProgressService(scheduleRepo, activityRepo, cacheRepo, metricsSvc, cacheEnabled, cfg.Progress.CacheTTL, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, progressSvc, cfg.Onboarding, validate, logr)
	patientSvc := service.NewPatientService(patientRepo, scheduleSvc, cfg.Onboarding.AutoCreateScheduleOnJoin, validate, logr)
	submissionSvc := service.NewSubmissionService(activityRepo, scheduleRepo, progressSvc, metricsSvc, cfg.Submission.MaxRetries, validate, logr)
	audiometrySvc := service.NewAudiometryService(audiogramRepo, validate, logr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	progressSvc.StartRefreshQueue(ctx, cfg.Progress.RefreshWorkers)
	defer progressSvc.StopRefreshQueue()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handlers := handler.New(patientSvc, scheduleSvc, submissionSvc, progressSvc, audiometrySvc, metricsSvc)
	handlers.Register(r, cfg.APIPrefix, metricsSvc)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
