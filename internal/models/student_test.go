package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualificationsScan(t *testing.T) {
	var q Qualifications
	require.NoError(t, q.Scan([]byte(`{"finalGrade": 74, "subjects": ["Math", "Biology"], "portfolio": "files/p.pdf"}`)))

	assert.Equal(t, "74", q.FinalGrade())
	assert.Equal(t, []string{"Math", "Biology"}, q.Subjects())
	assert.Equal(t, "files/p.pdf", q.Portfolio())
}

func TestQualificationsScanNil(t *testing.T) {
	var q Qualifications
	require.NoError(t, q.Scan(nil))

	assert.NotNil(t, q)
	assert.Equal(t, "", q.FinalGrade())
	assert.Nil(t, q.Subjects())
}

func TestQualificationsScanRejectsUnknownType(t *testing.T) {
	var q Qualifications
	assert.Error(t, q.Scan(42))
}

func TestCourseRequirementsRoundTripThroughDriver(t *testing.T) {
	minimum := 70.0
	value, err := CourseRequirements{MinimumGrade: &minimum, PortfolioRequired: true}.Value()
	require.NoError(t, err)

	var decoded CourseRequirements
	require.NoError(t, decoded.Scan(value))
	require.NotNil(t, decoded.MinimumGrade)
	assert.Equal(t, 70.0, *decoded.MinimumGrade)
	assert.True(t, decoded.PortfolioRequired)
	assert.Nil(t, decoded.RequiredSubjects)
}

func TestApplicationStatusTokens(t *testing.T) {
	assert.True(t, ApplicationStatus("under_review").Valid())
	assert.False(t, ApplicationStatus("UNDER_REVIEW").Valid())
	assert.True(t, ApplicationStatusRejected.Terminal())
	assert.True(t, ApplicationStatusAdmitted.Terminal())
	assert.False(t, ApplicationStatusApproved.Terminal())
}
