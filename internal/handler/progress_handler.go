package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/melodia-health/melodia-api/internal/service"
	"github.com/melodia-health/melodia-api/pkg/response"
)

// ProgressHandler serves adherence aggregation endpoints.
type ProgressHandler struct {
	service *service.ProgressService
}

// NewProgressHandler constructs handler.
func NewProgressHandler(svc *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{service: svc}
}

// ForPatient godoc
// @Summary Get patient progress
// @Tags Progress
// @Produce json
// @Param id path string true "Patient ID"
// @Success 200 {object} response.Envelope
// @Router /patients/{id}/progress [get]
func (h *ProgressHandler) ForPatient(c *gin.Context) {
	progress, err := h.service.ForPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// Refresh godoc
// @Summary Invalidate cached progress
// @Tags Progress
// @Param id path string true "Patient ID"
// @Success 204
// @Router /patients/{id}/progress [delete]
func (h *ProgressHandler) Refresh(c *gin.Context) {
	h.service.Invalidate(c.Request.Context(), c.Param("id"))
	response.NoContent(c)
}
