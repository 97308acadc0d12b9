package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/admission"
	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type fakeCatalogService struct {
	inst       *models.Institution
	course     *models.Course
	err        error
	gotPublish dto.PublishAdmissionsRequest
	gotQuery   dto.CourseQuery
}

func (f *fakeCatalogService) Institution(context.Context, string) (*models.Institution, error) {
	return f.inst, f.err
}
func (f *fakeCatalogService) ListInstitutions(context.Context) ([]models.Institution, error) {
	return []models.Institution{}, f.err
}
func (f *fakeCatalogService) PublishAdmissions(_ context.Context, _ string, req dto.PublishAdmissionsRequest, _ models.Actor) (*models.Institution, error) {
	f.gotPublish = req
	return f.inst, f.err
}
func (f *fakeCatalogService) Course(context.Context, string) (*models.Course, error) {
	return f.course, f.err
}
func (f *fakeCatalogService) ListCourses(_ context.Context, query dto.CourseQuery) ([]models.Course, error) {
	f.gotQuery = query
	return []models.Course{}, f.err
}
func (f *fakeCatalogService) CreateCourse(context.Context, dto.CourseRequest, models.Actor) (*models.Course, error) {
	return f.course, f.err
}
func (f *fakeCatalogService) UpdateCourse(context.Context, string, dto.CourseRequest, models.Actor) (*models.Course, error) {
	return f.course, f.err
}

var adminClaims = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

func TestCatalogHandlerPublishParsesDeadline(t *testing.T) {
	svc := &fakeCatalogService{inst: &models.Institution{ID: "inst-1", AdmissionsPublished: true}}
	h := NewCatalogHandler(svc)

	c, rec := newContext(http.MethodPost, "/institutions/inst-1/publish", map[string]string{
		"academicYear": "2026/2027",
		"deadline":     "2026-08-31T23:59:00Z",
	}, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "inst-1"}}
	h.PublishAdmissions(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026/2027", svc.gotPublish.AcademicYear)
	assert.True(t, svc.gotPublish.Deadline.Equal(time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC)))
}

func TestCatalogHandlerCreateCourse(t *testing.T) {
	h := NewCatalogHandler(&fakeCatalogService{course: &models.Course{ID: "course-1"}})

	c, rec := newContext(http.MethodPost, "/courses", dto.CourseRequest{InstitutionID: "inst-1", Name: "Law"}, adminClaims)
	h.CreateCourse(c)
	assert.Equal(t, http.StatusCreated, rec.Code)

	forbidden := NewCatalogHandler(&fakeCatalogService{err: appErrors.ErrForbidden})
	c, rec = newContext(http.MethodPut, "/courses/course-1", dto.CourseRequest{InstitutionID: "inst-2", Name: "Law"}, adminClaims)
	forbidden.UpdateCourse(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCatalogHandlerListCoursesQuery(t *testing.T) {
	svc := &fakeCatalogService{}
	h := NewCatalogHandler(svc)

	c, rec := newContext(http.MethodGet, "/courses?institutionId=inst-1&active=true", nil, adminClaims)
	h.ListCourses(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.CourseQuery{InstitutionID: "inst-1", ActiveOnly: true}, svc.gotQuery)
	assert.Nil(t, decode(t, rec).Error)
}

type fakeDashboardService struct {
	summary admission.Summary
	err     error
}

func (f *fakeDashboardService) Admissions(context.Context, dto.AdmissionsDashboardQuery, models.Actor) (admission.Summary, error) {
	return f.summary, f.err
}

func TestDashboardHandlerAdmissions(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboardService{summary: admission.Aggregate(nil)})

	c, rec := newContext(http.MethodGet, "/dashboard/admissions", nil, adminClaims)
	h.Admissions(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, true, env.Meta["derived"])
	assert.JSONEq(t, `[]`, extract(t, env.Data, "perInstitution"))
	assert.JSONEq(t, `0`, extract(t, env.Data, "total"))
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return appErrors.ErrStoreUnavailable },
	})

	c, rec := newContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"postgres":"ok"`)

	c, rec = newContext(http.MethodGet, "/metrics", nil, nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
