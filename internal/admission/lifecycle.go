package admission

import (
	"fmt"
	"time"

	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

var transitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.ApplicationStatusPending: {
		models.ApplicationStatusUnderReview,
		models.ApplicationStatusApproved,
		models.ApplicationStatusRejected,
	},
	models.ApplicationStatusUnderReview: {
		models.ApplicationStatusApproved,
		models.ApplicationStatusRejected,
	},
	models.ApplicationStatusApproved: {
		models.ApplicationStatusAdmitted,
	},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to models.ApplicationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from the given one.
func NextStatuses(from models.ApplicationStatus) []models.ApplicationStatus {
	return append([]models.ApplicationStatus(nil), transitions[from]...)
}

// NewApplication builds a pending application stamped with now.
func NewApplication(c Candidate, now time.Time) models.Application {
	now = now.UTC()
	return models.Application{
		StudentID:     c.StudentID,
		InstitutionID: c.InstitutionID,
		CourseID:      c.CourseID,
		Status:        models.ApplicationStatusPending,
		AppliedDate:   now,
		LastUpdated:   now,
	}
}

// Transition returns app moved to the target status, or an invalid transition
// error leaving app untouched. Admission sets AdmissionAccepted; AppliedDate is never rewritten.
func Transition(app models.Application, to models.ApplicationStatus, now time.Time) (models.Application, error) {
	if !to.Valid() {
		return app, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", to))
	}
	if app.Status.Terminal() {
		return app, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("application is %s and cannot change", app.Status))
	}
	if !CanTransition(app.Status, to) {
		return app, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move application from %s to %s", app.Status, to))
	}
	next := app
	next.Status = to
	next.LastUpdated = now.UTC()
	if to == models.ApplicationStatusAdmitted {
		next.AdmissionAccepted = true
	}
	return next, nil
}

// Update describes the compare-and-swap write for a transition from prev to next.
func Update(prev, next models.Application) models.StatusUpdate {
	return models.StatusUpdate{
		ApplicationID:     next.ID,
		From:              prev.Status,
		To:                next.Status,
		AdmissionAccepted: next.AdmissionAccepted,
		UpdatedAt:         next.LastUpdated,
	}
}
