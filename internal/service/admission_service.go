package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/admission"
	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/internal/repository"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type applicationStore interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Application, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
	CreateGuarded(ctx context.Context, app *models.Application, guard repository.ApplicationGuard) error
	UpdateStatusGuarded(ctx context.Context, studentID string, update models.StatusUpdate, guard repository.ApplicationGuard) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type catalogReader interface {
	Institution(ctx context.Context, id string) (*models.Institution, error)
	Course(ctx context.Context, id string) (*models.Course, error)
}

// AdmissionServiceConfig tunes the submission workflow.
type AdmissionServiceConfig struct {
	MaxActivePerInstitution int
	StoreTimeout            time.Duration
	EnforceWindow           bool
}

// AdmissionServiceParams groups constructor dependencies.
type AdmissionServiceParams struct {
	Applications applicationStore
	Students     studentReader
	Catalog      catalogReader
	Audit        auditRecorder
	Metrics      *MetricsService
	Validator    *validator.Validate
	Logger       *zap.Logger
	Config       AdmissionServiceConfig
}

// AdmissionService runs the admission rules against the store inside
// transactional boundaries.
type AdmissionService struct {
	apps      applicationStore
	students  studentReader
	catalog   catalogReader
	audit     auditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AdmissionServiceConfig
	now       func() time.Time
}

// NewAdmissionService constructs the service with defaults.
func NewAdmissionService(params AdmissionServiceParams) *AdmissionService {
	cfg := params.Config
	if cfg.MaxActivePerInstitution <= 0 {
		cfg.MaxActivePerInstitution = admission.MaxActivePerInstitution
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	v := params.Validator
	if v == nil {
		v = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionService{
		apps:      params.Applications,
		students:  params.Students,
		catalog:   params.Catalog,
		audit:     params.Audit,
		metrics:   params.Metrics,
		validator: v,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SubmitApplication creates a pending application once every admission rule
// passes. With a non-empty idempotency key a retried request returns the
// application created by the first attempt and replayed is true.
func (s *AdmissionService) SubmitApplication(ctx context.Context, req dto.SubmitApplicationRequest, actor models.Actor, idempotencyKey string) (app *models.Application, replayed bool, err error) {
	defer func() {
		outcome := "created"
		switch {
		case err != nil:
			outcome = strings.ToLower(appErrors.FromError(err).Code)
		case replayed:
			outcome = "replayed"
		}
		s.metrics.RecordSubmission(outcome)
	}()

	req.StudentID = strings.TrimSpace(req.StudentID)
	req.CourseID = strings.TrimSpace(req.CourseID)
	req.InstitutionID = strings.TrimSpace(req.InstitutionID)
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "studentId, courseId and institutionId are required")
	}
	if len(idempotencyKey) > 128 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "idempotency key must be at most 128 characters")
	}
	if err := authorizeSubmission(actor, req.StudentID); err != nil {
		return nil, false, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if idempotencyKey != "" {
		prior, err := s.replay(ctx, idempotencyKey, req)
		if err != nil || prior != nil {
			return prior, prior != nil, err
		}
	}

	// An accepted admission outranks every other failure, including references
	// that do not resolve.
	existing, err := s.apps.ListByStudent(ctx, req.StudentID)
	if err != nil {
		return nil, false, storeError(err, "application", "load student applications")
	}
	if admission.HasActiveAdmission(existing) {
		return nil, false, appErrors.Clone(appErrors.ErrAdmissionConflict, "")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, false, storeError(err, "student", "load student")
	}
	institution, err := s.catalog.Institution(ctx, req.InstitutionID)
	if err != nil {
		return nil, false, err
	}
	course, err := s.catalog.Course(ctx, req.CourseID)
	if err != nil {
		return nil, false, err
	}
	if course.InstitutionID != institution.ID {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "course does not belong to the given institution")
	}

	candidate := admission.Candidate{StudentID: student.ID, InstitutionID: institution.ID, CourseID: course.ID}
	if err := admission.CheckExisting(existing, candidate, s.cfg.MaxActivePerInstitution); err != nil {
		return nil, false, err
	}
	if s.cfg.EnforceWindow {
		if err := admissionWindowOpen(institution, course, s.now()); err != nil {
			return nil, false, err
		}
	}
	if err := admission.CheckEligibility(course.Requirements, mergeQualifications(student.Qualifications, req.Qualifications)); err != nil {
		return nil, false, err
	}

	created := admission.NewApplication(candidate, s.now())
	if idempotencyKey != "" {
		created.IdempotencyKey = &idempotencyKey
	}
	start := time.Now()
	err = s.apps.CreateGuarded(ctx, &created, func(locked []models.Application) error {
		return admission.CheckExisting(locked, candidate, s.cfg.MaxActivePerInstitution)
	})
	s.metrics.ObserveStore("create_application", time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			if idempotencyKey != "" {
				if prior, replayErr := s.replay(ctx, idempotencyKey, req); replayErr != nil || prior != nil {
					return prior, prior != nil, replayErr
				}
			}
			return nil, false, appErrors.Clone(appErrors.ErrDuplicate, "")
		}
		return nil, false, storeError(err, "student", "create application")
	}

	s.logger.Info("application submitted",
		zap.String("application_id", created.ID),
		zap.String("student_id", created.StudentID),
		zap.String("institution_id", created.InstitutionID),
		zap.String("course_id", created.CourseID),
	)
	s.recordAudit(ctx, actor, models.AuditActionApplicationSubmit, created.ID, nil, &created)
	return &created, false, nil
}

// replay returns the application previously created with key, nil when the
// key is unused, or a conflict when the key belongs to a different request.
func (s *AdmissionService) replay(ctx context.Context, key string, req dto.SubmitApplicationRequest) (*models.Application, error) {
	prior, err := s.apps.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeError(err, "application", "look up idempotency key")
	}
	if prior.StudentID != req.StudentID || prior.CourseID != req.CourseID || prior.InstitutionID != req.InstitutionID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "idempotency key was already used for a different application")
	}
	return prior, nil
}

// TransitionStatus moves an application along its lifecycle. The write only
// lands if the stored status still equals the one the transition was computed from.
func (s *AdmissionService) TransitionStatus(ctx context.Context, id string, target models.ApplicationStatus, actor models.Actor) (*models.Application, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "application id is required")
	}
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", target))
	}

	ctx, cancel := withStoreTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	current, err := s.apps.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "application", "load application")
	}
	if err := authorizeTransition(actor, current, target); err != nil {
		return nil, err
	}
	if current.Status == target {
		return current, nil
	}

	next, err := admission.Transition(*current, target, s.now())
	if err != nil {
		return nil, err
	}
	update := admission.Update(*current, next)

	var guard repository.ApplicationGuard
	if target == models.ApplicationStatusAdmitted {
		guard = func(locked []models.Application) error {
			if admission.HasActiveAdmission(locked) {
				return appErrors.Clone(appErrors.ErrAdmissionConflict, "student already accepted another offer")
			}
			return nil
		}
	}

	start := time.Now()
	err = s.apps.UpdateStatusGuarded(ctx, current.StudentID, update, guard)
	s.metrics.ObserveStore("transition_application", time.Since(start))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateKey):
			return nil, appErrors.Clone(appErrors.ErrAdmissionConflict, "student already accepted another offer")
		case errors.Is(err, sql.ErrNoRows):
			return s.resolveLostUpdate(ctx, current, target)
		}
		return nil, storeError(err, "application", "update application status")
	}

	s.metrics.RecordTransition(update.From, update.To)
	s.logger.Info("application status changed",
		zap.String("application_id", next.ID),
		zap.String("from", string(update.From)),
		zap.String("to", string(update.To)),
		zap.String("actor_role", string(actor.Role)),
	)
	s.recordAudit(ctx, actor, models.AuditActionApplicationTransition, next.ID, current, &next)
	return &next, nil
}

// resolveLostUpdate explains a compare-and-swap miss by re-reading the row.
func (s *AdmissionService) resolveLostUpdate(ctx context.Context, before *models.Application, target models.ApplicationStatus) (*models.Application, error) {
	latest, err := s.apps.FindByID(ctx, before.ID)
	if err != nil {
		return nil, storeError(err, "application", "reload application")
	}
	switch latest.Status {
	case target:
		return latest, nil
	case before.Status:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("application moved to %s concurrently", latest.Status))
}

// GetApplication returns one application visible to the actor.
func (s *AdmissionService) GetApplication(ctx context.Context, id string, actor models.Actor) (*models.Application, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	app, err := s.apps.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, storeError(err, "application", "load application")
	}
	if !canView(actor, app) {
		// Hide existence from actors outside the application's scope.
		return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return app, nil
}

// ListApplications returns a page of applications scoped to the actor.
func (s *AdmissionService) ListApplications(ctx context.Context, query dto.ApplicationQuery, actor models.Actor) ([]models.Application, *models.Pagination, error) {
	filter, err := scopeFilter(actor, query.InstitutionID, query.StudentID)
	if err != nil {
		return nil, nil, err
	}
	if query.Status != "" && !query.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", query.Status))
	}
	filter.Status = query.Status
	filter.Page = query.Page
	if filter.Page < 1 {
		filter.Page = 1
	}
	filter.PageSize = query.PageSize
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	ctx, cancel := withStoreTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	apps, total, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "application", "list applications")
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return apps, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *AdmissionService) recordAudit(ctx context.Context, actor models.Actor, action, applicationID string, before, after *models.Application) {
	if s.audit == nil {
		return
	}
	userID := actor.UserID
	entry := models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "application",
		ResourceID: &applicationID,
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(statusSnapshot(before))
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(statusSnapshot(after))
	}
	s.audit.Record(ctx, entry)
}

func statusSnapshot(app *models.Application) map[string]interface{} {
	return map[string]interface{}{
		"status":            app.Status,
		"admissionAccepted": app.AdmissionAccepted,
		"lastUpdated":       app.LastUpdated,
	}
}

func authorizeSubmission(actor models.Actor, studentID string) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		if actor.UserID == studentID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "students may only apply for themselves")
	}
	return appErrors.Clone(appErrors.ErrForbidden, "role may not submit applications")
}

// authorizeTransition applies the role rules: reviewers move applications of
// their own institution, only the applicant accepts an offer, admins do both.
func authorizeTransition(actor models.Actor, app *models.Application, target models.ApplicationStatus) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if target == models.ApplicationStatusAdmitted {
		if actor.Role == models.RoleStudent && actor.UserID == app.StudentID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "only the applicant may accept an offer")
	}
	if actor.Role == models.RoleInstitute && actor.InstitutionID == app.InstitutionID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "only the owning institution may review applications")
}

func canView(actor models.Actor, app *models.Application) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleInstitute:
		return actor.InstitutionID == app.InstitutionID
	case models.RoleStudent:
		return actor.UserID == app.StudentID
	}
	return false
}

// scopeFilter narrows a listing to what the actor may see.
func scopeFilter(actor models.Actor, institutionID, studentID string) (models.ApplicationFilter, error) {
	filter := models.ApplicationFilter{InstitutionID: institutionID, StudentID: studentID}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleInstitute:
		if institutionID != "" && institutionID != actor.InstitutionID {
			return filter, appErrors.Clone(appErrors.ErrForbidden, "cannot list another institution's applications")
		}
		filter.InstitutionID = actor.InstitutionID
	case models.RoleStudent:
		if studentID != "" && studentID != actor.UserID {
			return filter, appErrors.Clone(appErrors.ErrForbidden, "cannot list another student's applications")
		}
		filter.StudentID = actor.UserID
	default:
		return filter, appErrors.ErrForbidden
	}
	return filter, nil
}

// admissionWindowOpen rejects submissions outside a published round. The
// course deadline takes precedence over the institution deadline.
func admissionWindowOpen(inst *models.Institution, course *models.Course, now time.Time) error {
	if !inst.AdmissionsPublished {
		return appErrors.Clone(appErrors.ErrValidation, "admissions are not open at this institution")
	}
	if !course.Active {
		return appErrors.Clone(appErrors.ErrValidation, "course is not accepting applications")
	}
	deadline := course.ApplicationDeadline
	if deadline == nil {
		deadline = inst.ApplicationDeadline
	}
	if deadline != nil && now.After(*deadline) {
		return appErrors.Clone(appErrors.ErrValidation, "application deadline has passed")
	}
	return nil
}

// mergeQualifications overlays the stored record on the submitted one; stored
// values win so applicants cannot override verified data.
func mergeQualifications(stored, submitted models.Qualifications) models.Qualifications {
	merged := make(models.Qualifications, len(stored)+len(submitted))
	for k, v := range submitted {
		merged[k] = v
	}
	for k, v := range stored {
		merged[k] = v
	}
	return merged
}
