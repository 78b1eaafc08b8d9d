package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/melodia-health/melodia-api/internal/middleware"
	"github.com/melodia-health/melodia-api/internal/service"
)

// Handlers bundles every HTTP handler the API serves.
type Handlers struct {
	Patients    *PatientHandler
	Schedules   *ScheduleHandler
	Submissions *SubmissionHandler
	Progress    *ProgressHandler
	Audiograms  *AudiogramHandler
	Metrics     *MetricsHandler
}

// New wires handlers from the service layer.
func New(patients *service.PatientService, schedules *service.ScheduleService, submissions *service.SubmissionService, progress *service.ProgressService, audiometry *service.AudiometryService, metrics *service.MetricsService) *Handlers {
	return &Handlers{
		Patients:    NewPatientHandler(patients),
		Schedules:   NewScheduleHandler(schedules),
		Submissions: NewSubmissionHandler(submissions),
		Progress:    NewProgressHandler(progress),
		Audiograms:  NewAudiogramHandler(audiometry),
		Metrics:     NewMetricsHandler(metrics),
	}
}

// Register mounts all routes under the API prefix. Health and metrics stay
// at the root.
func (h *Handlers) Register(r *gin.Engine, prefix string, metricsSvc *service.MetricsService) {
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	patients := api.Group("/patients")
	patients.GET("", h.Patients.List)
	patients.POST("", h.Patients.Enroll)
	patients.GET("/:id", h.Patients.Get)
	patients.PATCH("/:id", h.Patients.Update)
	patients.GET("/:id/schedule", h.Schedules.Active)
	patients.GET("/:id/schedules", h.Schedules.History)
	patients.GET("/:id/activities", h.Submissions.List)
	patients.GET("/:id/progress", h.Progress.ForPatient)
	patients.DELETE("/:id/progress", h.Progress.Refresh)
	patients.GET("/:id/audiograms", h.Audiograms.List)

	schedules := api.Group("/schedules")
	schedules.POST("", h.Schedules.Create)
	schedules.GET("/:id", h.Schedules.Get)
	schedules.PATCH("/:id", h.Schedules.Update)
	schedules.DELETE("/:id", h.Schedules.Deactivate)

	api.POST("/sessions", h.Submissions.SubmitSession)
	api.POST("/surveys", h.Submissions.SubmitSurvey)

	activities := api.Group("/activities")
	activities.GET("/:id", h.Submissions.Get)
	activities.POST("/:id/complete", h.Submissions.Complete)

	audiograms := api.Group("/audiograms")
	audiograms.POST("", h.Audiograms.Record)
	audiograms.GET("/:id", h.Audiograms.Get)
}
