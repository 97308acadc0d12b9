package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-api/internal/admission"
	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/middleware"
	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/pkg/response"
)

type dashboardService interface {
	Admissions(ctx context.Context, query dto.AdmissionsDashboardQuery, actor models.Actor) (admission.Summary, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Admissions godoc
// @Summary Admissions status summary
// @Description Counts are recomputed from applications on every request.
// @Tags Dashboard
// @Produce json
// @Param institutionId query string false "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /dashboard/admissions [get]
func (h *DashboardHandler) Admissions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.AdmissionsDashboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	summary, err := h.service.Admissions(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "derived", true)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}
