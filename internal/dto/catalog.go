package dto

import (
	"time"

	"github.com/noah-isme/admissions-api/internal/models"
)

// PublishAdmissionsRequest opens an institution's admission round.
type PublishAdmissionsRequest struct {
	AcademicYear string    `json:"academicYear" validate:"required,max=32"`
	Deadline     time.Time `json:"deadline" validate:"required"`
}

// CourseRequest creates or replaces a course definition.
type CourseRequest struct {
	InstitutionID       string                    `json:"institutionId" validate:"required"`
	Name                string                    `json:"name" validate:"required,max=255"`
	Requirements        models.CourseRequirements `json:"requirements"`
	Capacity            *int                      `json:"capacity" validate:"omitempty,min=0"`
	Active              *bool                     `json:"active"`
	ApplicationDeadline *time.Time                `json:"applicationDeadline"`
}

// CourseQuery filters the course catalog.
type CourseQuery struct {
	InstitutionID string `form:"institutionId"`
	ActiveOnly    bool   `form:"active"`
}
