package admission

import "github.com/noah-isme/admissions-api/internal/models"

// MaxActivePerInstitution is the number of concurrent active applications a
// student may hold at one institution.
const MaxActivePerInstitution = 2

// countsTowardQuota lists the statuses that occupy a quota slot.
var countsTowardQuota = map[models.ApplicationStatus]struct{}{
	models.ApplicationStatusPending:     {},
	models.ApplicationStatusUnderReview: {},
	models.ApplicationStatusApproved:    {},
}

// ActiveCount returns how many of the student's applications at institutionID occupy a slot.
func ActiveCount(existing []models.Application, institutionID string) int {
	count := 0
	for _, app := range existing {
		if app.InstitutionID != institutionID {
			continue
		}
		if _, ok := countsTowardQuota[app.Status]; ok {
			count++
		}
	}
	return count
}

// CanApply reports whether another application to institutionID fits the default quota.
func CanApply(existing []models.Application, institutionID string) bool {
	return CanApplyWithin(existing, institutionID, MaxActivePerInstitution)
}

// CanApplyWithin is CanApply with an explicit limit. A non-positive limit falls back to the default.
func CanApplyWithin(existing []models.Application, institutionID string, limit int) bool {
	if limit <= 0 {
		limit = MaxActivePerInstitution
	}
	return ActiveCount(existing, institutionID) < limit
}
