package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type institutionStore interface {
	FindByID(ctx context.Context, id string) (*models.Institution, error)
	List(ctx context.Context) ([]models.Institution, error)
	PublishAdmissions(ctx context.Context, params models.PublishAdmissionsParams) error
}

type courseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry models.AuditLog)
}

const (
	institutionCachePattern = "institution*"
	courseCachePattern      = "course*"
)

// CatalogServiceParams groups constructor dependencies.
type CatalogServiceParams struct {
	Institutions institutionStore
	Courses      courseStore
	Cache        *CacheService
	Audit        auditRecorder
	Validator    *validator.Validate
	Logger       *zap.Logger
	CacheTTL     time.Duration
	StoreTimeout time.Duration
}

// CatalogService serves institutions and courses with a read-through cache.
type CatalogService struct {
	institutions institutionStore
	courses      courseStore
	cache        *CacheService
	audit        auditRecorder
	validator    *validator.Validate
	logger       *zap.Logger
	ttl          time.Duration
	timeout      time.Duration
}

// NewCatalogService constructs the service.
func NewCatalogService(params CatalogServiceParams) *CatalogService {
	v := params.Validator
	if v == nil {
		v = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		institutions: params.Institutions,
		courses:      params.Courses,
		cache:        params.Cache,
		audit:        params.Audit,
		validator:    v,
		logger:       logger,
		ttl:          params.CacheTTL,
		timeout:      params.StoreTimeout,
	}
}

func institutionKey(id string) string { return "institution:" + id }
func courseKey(id string) string      { return "course:" + id }

// Institution returns an institution by ID.
func (s *CatalogService) Institution(ctx context.Context, id string) (*models.Institution, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "institution id is required")
	}
	var cached models.Institution
	if s.cache.Get(ctx, institutionKey(id), &cached) {
		return &cached, nil
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	inst, err := s.institutions.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "institution", "load institution")
	}
	s.cache.Set(ctx, institutionKey(id), inst, s.ttl)
	return inst, nil
}

// ListInstitutions returns every institution.
func (s *CatalogService) ListInstitutions(ctx context.Context) ([]models.Institution, error) {
	const key = "institutions:all"
	var cached []models.Institution
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	items, err := s.institutions.List(ctx)
	if err != nil {
		return nil, storeError(err, "institution", "list institutions")
	}
	if items == nil {
		items = []models.Institution{}
	}
	s.cache.Set(ctx, key, items, s.ttl)
	return items, nil
}

// PublishAdmissions opens the admission round of an institution. The flag,
// academic year and deadline are written together.
func (s *CatalogService) PublishAdmissions(ctx context.Context, institutionID string, req dto.PublishAdmissionsRequest, actor models.Actor) (*models.Institution, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may publish admissions")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid publish payload")
	}
	storeCtx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	params := models.PublishAdmissionsParams{
		InstitutionID: institutionID,
		AcademicYear:  strings.TrimSpace(req.AcademicYear),
		Deadline:      req.Deadline.UTC(),
	}
	if err := s.institutions.PublishAdmissions(storeCtx, params); err != nil {
		return nil, storeError(err, "institution", "publish admissions")
	}
	_ = s.cache.Invalidate(ctx, institutionCachePattern)

	inst, err := s.institutions.FindByID(storeCtx, institutionID)
	if err != nil {
		return nil, storeError(err, "institution", "load institution")
	}
	s.recordAudit(ctx, actor, models.AuditActionAdmissionsPublish, "institution", inst.ID, params)
	s.logger.Info("admissions published", zap.String("institution_id", inst.ID), zap.String("academic_year", params.AcademicYear))
	return inst, nil
}

// Course returns a course by ID.
func (s *CatalogService) Course(ctx context.Context, id string) (*models.Course, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}
	var cached models.Course
	if s.cache.Get(ctx, courseKey(id), &cached) {
		return &cached, nil
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "course", "load course")
	}
	s.cache.Set(ctx, courseKey(id), course, s.ttl)
	return course, nil
}

// ListCourses returns the courses matching the query.
func (s *CatalogService) ListCourses(ctx context.Context, query dto.CourseQuery) ([]models.Course, error) {
	key := fmt.Sprintf("courses:%s:%t", query.InstitutionID, query.ActiveOnly)
	var cached []models.Course
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	items, err := s.courses.List(ctx, models.CourseFilter{InstitutionID: query.InstitutionID, ActiveOnly: query.ActiveOnly})
	if err != nil {
		return nil, storeError(err, "course", "list courses")
	}
	if items == nil {
		items = []models.Course{}
	}
	s.cache.Set(ctx, key, items, s.ttl)
	return items, nil
}

// CreateCourse adds a course to an institution.
func (s *CatalogService) CreateCourse(ctx context.Context, req dto.CourseRequest, actor models.Actor) (*models.Course, error) {
	if err := s.validateCourse(req, actor); err != nil {
		return nil, err
	}
	if _, err := s.Institution(ctx, req.InstitutionID); err != nil {
		return nil, err
	}
	course := &models.Course{
		InstitutionID:       req.InstitutionID,
		Name:                strings.TrimSpace(req.Name),
		Requirements:        req.Requirements,
		Capacity:            req.Capacity,
		Active:              req.Active == nil || *req.Active,
		ApplicationDeadline: utcPtr(req.ApplicationDeadline),
	}
	storeCtx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.courses.Create(storeCtx, course); err != nil {
		return nil, storeError(err, "course", "create course")
	}
	_ = s.cache.Invalidate(ctx, courseCachePattern)
	s.recordAudit(ctx, actor, models.AuditActionCourseCreate, "course", course.ID, course)
	return course, nil
}

// UpdateCourse replaces the editable fields of a course.
func (s *CatalogService) UpdateCourse(ctx context.Context, id string, req dto.CourseRequest, actor models.Actor) (*models.Course, error) {
	if err := s.validateCourse(req, actor); err != nil {
		return nil, err
	}
	storeCtx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	existing, err := s.courses.FindByID(storeCtx, id)
	if err != nil {
		return nil, storeError(err, "course", "load course")
	}
	if existing.InstitutionID != req.InstitutionID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course cannot move to another institution")
	}
	updated := *existing
	updated.Name = strings.TrimSpace(req.Name)
	updated.Requirements = req.Requirements
	updated.Capacity = req.Capacity
	if req.Active != nil {
		updated.Active = *req.Active
	}
	updated.ApplicationDeadline = utcPtr(req.ApplicationDeadline)
	if err := s.courses.Update(storeCtx, &updated); err != nil {
		return nil, storeError(err, "course", "update course")
	}
	_ = s.cache.Invalidate(ctx, courseCachePattern)
	s.recordAudit(ctx, actor, models.AuditActionCourseUpdate, "course", updated.ID, updated)
	return &updated, nil
}

func (s *CatalogService) validateCourse(req dto.CourseRequest, actor models.Actor) error {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleInstitute:
		if actor.InstitutionID != req.InstitutionID {
			return appErrors.Clone(appErrors.ErrForbidden, "courses can only be managed by their own institution")
		}
	default:
		return appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if grade := req.Requirements.MinimumGrade; grade != nil && (math.IsNaN(*grade) || *grade < 0) {
		return appErrors.Clone(appErrors.ErrValidation, "minimumGrade must be a non-negative number")
	}
	return nil
}

func (s *CatalogService) recordAudit(ctx context.Context, actor models.Actor, action, resource, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to encode audit payload", zap.String("action", action), zap.Error(err))
	}
	userID := actor.UserID
	s.audit.Record(ctx, models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  encoded,
	})
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
