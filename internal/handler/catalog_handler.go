package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/pkg/response"
)

type catalogService interface {
	Institution(ctx context.Context, id string) (*models.Institution, error)
	ListInstitutions(ctx context.Context) ([]models.Institution, error)
	PublishAdmissions(ctx context.Context, institutionID string, req dto.PublishAdmissionsRequest, actor models.Actor) (*models.Institution, error)
	Course(ctx context.Context, id string) (*models.Course, error)
	ListCourses(ctx context.Context, query dto.CourseQuery) ([]models.Course, error)
	CreateCourse(ctx context.Context, req dto.CourseRequest, actor models.Actor) (*models.Course, error)
	UpdateCourse(ctx context.Context, id string, req dto.CourseRequest, actor models.Actor) (*models.Course, error)
}

// CatalogHandler serves institutions and courses.
type CatalogHandler struct {
	service catalogService
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(service catalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// ListInstitutions godoc
// @Summary List institutions
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /institutions [get]
func (h *CatalogHandler) ListInstitutions(c *gin.Context) {
	items, err := h.service.ListInstitutions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// GetInstitution godoc
// @Summary Get institution
// @Tags Catalog
// @Produce json
// @Param id path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /institutions/{id} [get]
func (h *CatalogHandler) GetInstitution(c *gin.Context) {
	inst, err := h.service.Institution(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inst, nil)
}

// PublishAdmissions godoc
// @Summary Publish admissions
// @Description Sets the published flag, academic year and deadline together.
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Institution ID"
// @Param payload body dto.PublishAdmissionsRequest true "Admission round"
// @Success 200 {object} response.Envelope
// @Router /institutions/{id}/publish [post]
func (h *CatalogHandler) PublishAdmissions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.PublishAdmissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	inst, err := h.service.PublishAdmissions(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inst, nil)
}

// ListCourses godoc
// @Summary List courses
// @Tags Catalog
// @Produce json
// @Param institutionId query string false "Institution ID"
// @Param active query bool false "Only active courses"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	var query dto.CourseQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	items, err := h.service.ListCourses(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// GetCourse godoc
// @Summary Get course
// @Tags Catalog
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CatalogHandler) GetCourse(c *gin.Context) {
	course, err := h.service.Course(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// CreateCourse godoc
// @Summary Create course
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body dto.CourseRequest true "Course"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CatalogHandler) CreateCourse(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	course, err := h.service.CreateCourse(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// UpdateCourse godoc
// @Summary Update course
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CourseRequest true "Course"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CatalogHandler) UpdateCourse(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	course, err := h.service.UpdateCourse(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}
