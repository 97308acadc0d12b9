package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Qualification record keys recognised by eligibility rules.
const (
	QualificationFinalGrade = "finalGrade"
	QualificationSubjects   = "subjects"
	QualificationPortfolio  = "portfolio"
)

// Student represents an applicant and their qualification record.
type Student struct {
	ID             string         `db:"id" json:"id"`
	FullName       string         `db:"full_name" json:"fullName"`
	Email          string         `db:"email" json:"email"`
	Qualifications Qualifications `db:"qualifications" json:"qualifications"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// Qualifications maps subject or attribute names to free-form values such as
// final grade, subject list or portfolio reference. Stored as JSONB.
type Qualifications map[string]interface{}

// Value implements driver.Valuer.
func (q Qualifications) Value() (driver.Value, error) {
	if q == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(q)
}

// Scan implements sql.Scanner.
func (q *Qualifications) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*q = Qualifications{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan qualifications: unsupported type %T", src)
	}
	decoded := Qualifications{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("scan qualifications: %w", err)
		}
	}
	*q = decoded
	return nil
}

// FinalGrade returns the final grade rendered as text; numbers are formatted
// without trailing zeros. Missing values yield "".
func (q Qualifications) FinalGrade() string {
	switch v := q[QualificationFinalGrade].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Subjects returns the subject list. A comma separated string is accepted as well as an array.
func (q Qualifications) Subjects() []string {
	switch v := q[QualificationSubjects].(type) {
	case []string:
		return v
	case []interface{}:
		subjects := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				subjects = append(subjects, s)
			}
		}
		return subjects
	case string:
		return strings.Split(v, ",")
	default:
		return nil
	}
}

// Portfolio returns the portfolio reference, empty when absent.
func (q Qualifications) Portfolio() string {
	if v, ok := q[QualificationPortfolio].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
