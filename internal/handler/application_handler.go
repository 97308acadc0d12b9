package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/middleware"
	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/pkg/response"
)

// IdempotencyHeader carries the client key that makes submissions safe to retry.
const IdempotencyHeader = "Idempotency-Key"

type applicationService interface {
	SubmitApplication(ctx context.Context, req dto.SubmitApplicationRequest, actor models.Actor, idempotencyKey string) (*models.Application, bool, error)
	TransitionStatus(ctx context.Context, id string, target models.ApplicationStatus, actor models.Actor) (*models.Application, error)
	GetApplication(ctx context.Context, id string, actor models.Actor) (*models.Application, error)
	ListApplications(ctx context.Context, query dto.ApplicationQuery, actor models.Actor) ([]models.Application, *models.Pagination, error)
}

// ApplicationHandler exposes the application workflow over HTTP.
type ApplicationHandler struct {
	service applicationService
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(service applicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// Submit godoc
// @Summary Submit an application
// @Description Creates a pending application. Replays with the same Idempotency-Key return the original with 200.
// @Tags Applications
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client idempotency key"
// @Param payload body dto.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	app, replayed, err := h.service.SubmitApplication(c.Request.Context(), req, actor, c.GetHeader(IdempotencyHeader))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	middleware.SetMeta(c, "replayed", replayed)
	response.JSON(c, status, app, nil, middleware.ExtractMeta(c))
}

// Transition godoc
// @Summary Change application status
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.TransitionStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/status [patch]
func (h *ApplicationHandler) Transition(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.TransitionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	app, err := h.service.TransitionStatus(c.Request.Context(), c.Param("id"), req.Status, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	app, err := h.service.GetApplication(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// List godoc
// @Summary List applications
// @Tags Applications
// @Produce json
// @Param institutionId query string false "Institution ID"
// @Param studentId query string false "Student ID"
// @Param status query string false "Status" Enums(pending, under_review, approved, rejected, admitted)
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ApplicationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	apps, pagination, err := h.service.ListApplications(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination, middleware.ExtractMeta(c))
}
