package models

import "time"

// Institution is a university or college that owns courses and publishes admissions.
type Institution struct {
	ID                  string     `db:"id" json:"id"`
	Code                string     `db:"code" json:"code"`
	Name                string     `db:"name" json:"name"`
	AdmissionsPublished bool       `db:"admissions_published" json:"admissionsPublished"`
	AcademicYear        *string    `db:"academic_year" json:"academicYear,omitempty"`
	ApplicationDeadline *time.Time `db:"application_deadline" json:"applicationDeadline,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
}

// PublishAdmissionsParams carries the fields set together when admissions open.
type PublishAdmissionsParams struct {
	InstitutionID string
	AcademicYear  string
	Deadline      time.Time
}
