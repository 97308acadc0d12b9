package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/admission"
	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type applicationLister interface {
	ListAll(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error)
}

// DashboardService composes the admissions overview. Counts are recomputed
// from the applications on every call and never cached.
type DashboardService struct {
	apps    applicationLister
	logger  *zap.Logger
	timeout time.Duration
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(apps applicationLister, storeTimeout time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{apps: apps, logger: logger, timeout: storeTimeout}
}

// Admissions aggregates the applications visible to the actor.
func (s *DashboardService) Admissions(ctx context.Context, query dto.AdmissionsDashboardQuery, actor models.Actor) (admission.Summary, error) {
	if actor.Role == models.RoleStudent {
		return admission.Summary{}, appErrors.Clone(appErrors.ErrForbidden, "dashboard is reserved for staff")
	}
	filter, err := scopeFilter(actor, query.InstitutionID, query.StudentID)
	if err != nil {
		return admission.Summary{}, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	apps, err := s.apps.ListAll(ctx, filter)
	if err != nil {
		s.logger.Warn("admissions dashboard query failed", zap.Error(err))
		return admission.Summary{}, storeError(err, "application", "aggregate applications")
	}
	return admission.Aggregate(apps), nil
}
