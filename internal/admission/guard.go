package admission

import (
	"fmt"
	"strings"

	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

// Candidate describes an application about to be created.
type Candidate struct {
	StudentID     string
	InstitutionID string
	CourseID      string
}

// CheckExisting applies the rules that depend on the student's current
// applications, most specific failure first: accepted admission, duplicate
// course, then institution quota. It is evaluated once before and once inside
// the creating transaction.
func CheckExisting(existing []models.Application, c Candidate, limit int) error {
	if HasActiveAdmission(existing) {
		return appErrors.Clone(appErrors.ErrAdmissionConflict, "")
	}
	if HasApplied(existing, c.CourseID) {
		return appErrors.Clone(appErrors.ErrDuplicate, "")
	}
	if !CanApplyWithin(existing, c.InstitutionID, limit) {
		if limit <= 0 {
			limit = MaxActivePerInstitution
		}
		return appErrors.Clone(appErrors.ErrQuotaExceeded, fmt.Sprintf("student already has %d active applications at this institution", limit))
	}
	return nil
}

// CheckEligibility converts a failing evaluation into an eligibility error carrying the reasons.
func CheckEligibility(req models.CourseRequirements, q models.Qualifications) error {
	result := Evaluate(req, q)
	if result.Eligible {
		return nil
	}
	message := appErrors.ErrEligibility.Message + ": " + strings.Join(result.Reasons, "; ")
	return appErrors.WithDetails(appErrors.ErrEligibility, message, result.Reasons)
}
