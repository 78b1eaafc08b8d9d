package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/melodia-health/melodia-api/internal/service"
	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
	"github.com/melodia-health/melodia-api/pkg/response"
)

// SubmissionHandler manages session and questionnaire submission endpoints.
type SubmissionHandler struct {
	service *service.SubmissionService
}

// NewSubmissionHandler constructs handler.
func NewSubmissionHandler(svc *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{service: svc}
}

// SubmitSession godoc
// @Summary Record therapy session
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body service.SubmitSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions [post]
func (h *SubmissionHandler) SubmitSession(c *gin.Context) {
	var req service.SubmitSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.SubmitSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// SubmitSurvey godoc
// @Summary Record questionnaire
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body service.SubmitSurveyRequest true "Survey payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /surveys [post]
func (h *SubmissionHandler) SubmitSurvey(c *gin.Context) {
	var req service.SubmitSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.SubmitSurvey(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Complete godoc
// @Summary Mark activity completed
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Activity ID"
// @Param payload body service.CompleteActivityRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/complete [post]
func (h *SubmissionHandler) Complete(c *gin.Context) {
	var req service.CompleteActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.service.Complete(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Get godoc
// @Summary Get activity with score
// @Tags Submissions
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Router /activities/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List patient activity history
// @Tags Submissions
// @Produce json
// @Param id path string true "Patient ID"
// @Param kind query string false "session or survey"
// @Param from query string false "Date from (YYYY-MM-DD)"
// @Param to query string false "Date to (YYYY-MM-DD)"
// @Param completed query bool false "Completed only"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /patients/{id}/activities [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	req := service.ActivityListRequest{PatientID: c.Param("id")}
	if kind := c.Query("kind"); kind != "" {
		req.Kind = &kind
	}
	if from := c.Query("from"); from != "" {
		req.DateFrom = &from
	}
	if to := c.Query("to"); to != "" {
		req.DateTo = &to
	}
	if raw := c.Query("completed"); raw != "" {
		if completed, err := strconv.ParseBool(raw); err == nil {
			req.Completed = &completed
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		req.PageSize = limit
	}
	req.SortBy = c.Query("sort")
	req.SortOrder = c.Query("order")

	records, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}
