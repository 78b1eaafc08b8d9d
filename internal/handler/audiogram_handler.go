package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/melodia-health/melodia-api/internal/service"
	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
	"github.com/melodia-health/melodia-api/pkg/response"
)

// AudiogramHandler manages hearing-test endpoints.
type AudiogramHandler struct {
	service *service.AudiometryService
}

// NewAudiogramHandler constructs handler.
func NewAudiogramHandler(svc *service.AudiometryService) *AudiogramHandler {
	return &AudiogramHandler{service: svc}
}

// Record godoc
// @Summary Record audiogram
// @Tags Audiograms
// @Accept json
// @Produce json
// @Param payload body service.RecordAudiogramRequest true "Audiogram payload"
// @Success 201 {object} response.Envelope
// @Router /audiograms [post]
func (h *AudiogramHandler) Record(c *gin.Context) {
	var req service.RecordAudiogramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.service.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Get godoc
// @Summary Get audiogram
// @Tags Audiograms
// @Produce json
// @Param id path string true "Audiogram ID"
// @Success 200 {object} response.Envelope
// @Router /audiograms/{id} [get]
func (h *AudiogramHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// List godoc
// @Summary List patient audiograms
// @Tags Audiograms
// @Produce json
// @Param id path string true "Patient ID"
// @Param ear query string false "left or right"
// @Param conduction query string false "air or bone"
// @Param from query string false "Date from (YYYY-MM-DD)"
// @Param to query string false "Date to (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /patients/{id}/audiograms [get]
func (h *AudiogramHandler) List(c *gin.Context) {
	req := service.AudiogramListRequest{PatientID: c.Param("id")}
	if ear := c.Query("ear"); ear != "" {
		req.Ear = &ear
	}
	if conduction := c.Query("conduction"); conduction != "" {
		req.Conduction = &conduction
	}
	if from := c.Query("from"); from != "" {
		req.DateFrom = &from
	}
	if to := c.Query("to"); to != "" {
		req.DateTo = &to
	}

	records, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
