package admission

import "github.com/noah-isme/admissions-api/internal/models"

// HasActiveAdmission reports whether the student already accepted an offer.
func HasActiveAdmission(existing []models.Application) bool {
	for _, app := range existing {
		if app.AdmissionAccepted {
			return true
		}
	}
	return false
}

// HasApplied reports whether one of the applications targets courseID.
func HasApplied(existing []models.Application, courseID string) bool {
	for _, app := range existing {
		if app.CourseID == courseID {
			return true
		}
	}
	return false
}
