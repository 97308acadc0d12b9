package models

import "time"

// ApplicationStatus is the lifecycle state of an application. Values are the
// exact lowercase tokens exchanged over the wire.
type ApplicationStatus string

const (
	ApplicationStatusPending     ApplicationStatus = "pending"
	ApplicationStatusUnderReview ApplicationStatus = "under_review"
	ApplicationStatusApproved    ApplicationStatus = "approved"
	ApplicationStatusRejected    ApplicationStatus = "rejected"
	ApplicationStatusAdmitted    ApplicationStatus = "admitted"
)

// Valid reports whether s is a known status token.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusUnderReview, ApplicationStatusApproved,
		ApplicationStatusRejected, ApplicationStatusAdmitted:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationStatusRejected || s == ApplicationStatusAdmitted
}

// Application is a student's request to be admitted to a course.
type Application struct {
	ID                string            `db:"id" json:"id"`
	StudentID         string            `db:"student_id" json:"studentId"`
	InstitutionID     string            `db:"institution_id" json:"institutionId"`
	CourseID          string            `db:"course_id" json:"courseId"`
	Status            ApplicationStatus `db:"status" json:"status"`
	AdmissionAccepted bool              `db:"admission_accepted" json:"admissionAccepted"`
	IdempotencyKey    *string           `db:"idempotency_key" json:"-"`
	AppliedDate       time.Time         `db:"applied_date" json:"appliedDate"`
	LastUpdated       time.Time         `db:"last_updated" json:"lastUpdated"`
}

// ApplicationFilter narrows application listings; empty fields are ignored.
type ApplicationFilter struct {
	InstitutionID string
	StudentID     string
	Status        ApplicationStatus
	Page          int
	PageSize      int
}

// StatusUpdate describes a compare-and-swap status change.
type StatusUpdate struct {
	ApplicationID     string
	From              ApplicationStatus
	To                ApplicationStatus
	AdmissionAccepted bool
	UpdatedAt         time.Time
}
