package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CourseRequirements is the optional rule set a student must satisfy.
// Absent fields disable the matching rule.
type CourseRequirements struct {
	MinimumGrade      *float64 `json:"minimumGrade,omitempty"`
	RequiredSubjects  []string `json:"requiredSubjects,omitempty"`
	PortfolioRequired bool     `json:"portfolioRequired,omitempty"`
}

// Value implements driver.Valuer.
func (r CourseRequirements) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *CourseRequirements) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = CourseRequirements{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan course requirements: unsupported type %T", src)
	}
	var decoded CourseRequirements
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("scan course requirements: %w", err)
		}
	}
	*r = decoded
	return nil
}

// Course is an offering under an institution.
type Course struct {
	ID                  string             `db:"id" json:"id"`
	InstitutionID       string             `db:"institution_id" json:"institutionId"`
	Name                string             `db:"name" json:"name"`
	Requirements        CourseRequirements `db:"requirements" json:"requirements"`
	Capacity            *int               `db:"capacity" json:"capacity,omitempty"`
	Active              bool               `db:"active" json:"active"`
	ApplicationDeadline *time.Time         `db:"application_deadline" json:"applicationDeadline,omitempty"`
	CreatedAt           time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updatedAt"`
}

// CourseFilter constrains course listings.
type CourseFilter struct {
	InstitutionID string
	ActiveOnly    bool
}
