package dto

import "github.com/noah-isme/admissions-api/internal/models"

// SubmitApplicationRequest is the payload for creating an application.
type SubmitApplicationRequest struct {
	StudentID      string                `json:"studentId" validate:"required"`
	CourseID       string                `json:"courseId" validate:"required"`
	InstitutionID  string                `json:"institutionId" validate:"required"`
	Qualifications models.Qualifications `json:"qualifications,omitempty"`
}

// TransitionStatusRequest moves an application to a new lifecycle status.
type TransitionStatusRequest struct {
	Status models.ApplicationStatus `json:"status" validate:"required,oneof=pending under_review approved rejected admitted"`
}

// ApplicationQuery holds listing filters bound from the query string.
type ApplicationQuery struct {
	InstitutionID string                   `form:"institutionId"`
	StudentID     string                   `form:"studentId"`
	Status        models.ApplicationStatus `form:"status"`
	Page          int                      `form:"page"`
	PageSize      int                      `form:"limit"`
}

// SubmitApplicationResponse wraps a created or replayed application.
type SubmitApplicationResponse struct {
	Application *models.Application `json:"application"`
	Replayed    bool                `json:"replayed"`
}
