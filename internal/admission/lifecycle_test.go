package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

var allStatuses = []models.ApplicationStatus{
	models.ApplicationStatusPending,
	models.ApplicationStatusUnderReview,
	models.ApplicationStatusApproved,
	models.ApplicationStatusRejected,
	models.ApplicationStatusAdmitted,
}

func TestNewApplicationIsPending(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	created := NewApplication(Candidate{StudentID: "s1", InstitutionID: "i1", CourseID: "c1"}, now)

	assert.Equal(t, models.ApplicationStatusPending, created.Status)
	assert.False(t, created.AdmissionAccepted)
	assert.Equal(t, now, created.AppliedDate)
	assert.Equal(t, now, created.LastUpdated)
}

func TestTransitionEdges(t *testing.T) {
	allowed := map[models.ApplicationStatus]map[models.ApplicationStatus]bool{
		models.ApplicationStatusPending: {
			models.ApplicationStatusUnderReview: true,
			models.ApplicationStatusApproved:    true,
			models.ApplicationStatusRejected:    true,
		},
		models.ApplicationStatusUnderReview: {
			models.ApplicationStatusApproved: true,
			models.ApplicationStatusRejected: true,
		},
		models.ApplicationStatusApproved: {
			models.ApplicationStatusAdmitted: true,
		},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			assert.Equal(t, allowed[from][to], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransitionUpdatesTimestampsOnly(t *testing.T) {
	applied := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := applied.Add(48 * time.Hour)
	current := models.Application{ID: "a1", Status: models.ApplicationStatusPending, AppliedDate: applied, LastUpdated: applied}

	next, err := Transition(current, models.ApplicationStatusUnderReview, now)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusUnderReview, next.Status)
	assert.Equal(t, applied, next.AppliedDate)
	assert.Equal(t, now, next.LastUpdated)
	assert.False(t, next.AdmissionAccepted)
	assert.Equal(t, models.ApplicationStatusPending, current.Status)
}

func TestTransitionAdmitSetsAcceptance(t *testing.T) {
	current := models.Application{ID: "a1", Status: models.ApplicationStatusApproved}

	next, err := Transition(current, models.ApplicationStatusAdmitted, time.Now())
	require.NoError(t, err)
	assert.True(t, next.AdmissionAccepted)

	update := Update(current, next)
	assert.Equal(t, models.ApplicationStatusApproved, update.From)
	assert.Equal(t, models.ApplicationStatusAdmitted, update.To)
	assert.True(t, update.AdmissionAccepted)
}

func TestTransitionOutOfTerminalFails(t *testing.T) {
	for _, terminal := range []models.ApplicationStatus{models.ApplicationStatusRejected, models.ApplicationStatusAdmitted} {
		current := models.Application{ID: "a1", Status: terminal}
		for _, to := range allStatuses {
			next, err := Transition(current, to, time.Now())
			assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
			assert.Equal(t, terminal, next.Status)
		}
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	_, err := Transition(models.Application{Status: models.ApplicationStatusPending}, models.ApplicationStatus("withdrawn"), time.Now())

	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestTransitionSkippingStepFails(t *testing.T) {
	_, err := Transition(models.Application{Status: models.ApplicationStatusPending}, models.ApplicationStatusAdmitted, time.Now())

	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}
