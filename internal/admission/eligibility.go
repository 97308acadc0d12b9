package admission

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/admissions-api/internal/models"
)

// Eligibility is the outcome of evaluating a student against a course.
type Eligibility struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

// Evaluate checks every configured requirement independently and collects the
// reasons for each failing rule. It never panics; malformed input fails the rule.
func Evaluate(req models.CourseRequirements, q models.Qualifications) Eligibility {
	reasons := []string{}

	if req.MinimumGrade != nil {
		if reason := checkMinimumGrade(*req.MinimumGrade, q.FinalGrade()); reason != "" {
			reasons = append(reasons, reason)
		}
	}
	if req.RequiredSubjects != nil {
		if missing := missingSubjects(req.RequiredSubjects, q.Subjects()); len(missing) > 0 {
			reasons = append(reasons, fmt.Sprintf("missing required subjects: %s", strings.Join(missing, ", ")))
		}
	}
	if req.PortfolioRequired && q.Portfolio() == "" {
		reasons = append(reasons, "portfolio is required")
	}

	return Eligibility{Eligible: len(reasons) == 0, Reasons: reasons}
}

func checkMinimumGrade(minimum float64, raw string) string {
	if raw == "" {
		return "final grade is missing"
	}
	grade, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(grade) || math.IsInf(grade, 0) {
		return fmt.Sprintf("final grade %q is not a number", raw)
	}
	if grade < minimum {
		return fmt.Sprintf("final grade %s is below the minimum of %s", raw, strconv.FormatFloat(minimum, 'f', -1, 64))
	}
	return ""
}

// minReverseMatch is the shortest student subject that may match as a
// substring of a longer required subject.
const minReverseMatch = 4

// missingSubjects returns the required subjects (as given) that no student
// subject matches. Matching is case-insensitive on trimmed values. A student
// subject matches when it equals or contains the requirement, or when it is at
// least minReverseMatch characters and is contained in the requirement.
func missingSubjects(required, held []string) []string {
	normalisedHeld := make([]string, 0, len(held))
	for _, subject := range held {
		if s := normaliseSubject(subject); s != "" {
			normalisedHeld = append(normalisedHeld, s)
		}
	}

	var missing []string
	for _, subject := range required {
		want := normaliseSubject(subject)
		if want == "" {
			continue
		}
		if !matchesAny(want, normalisedHeld) {
			missing = append(missing, strings.TrimSpace(subject))
		}
	}
	return missing
}

func matchesAny(want string, held []string) bool {
	for _, have := range held {
		if have == want || strings.Contains(have, want) {
			return true
		}
		if len(have) >= minReverseMatch && strings.Contains(want, have) {
			return true
		}
	}
	return false
}

func normaliseSubject(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
