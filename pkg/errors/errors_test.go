package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrQuotaExceeded, "two active applications at institution")

	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.False(t, errors.Is(err, ErrAdmissionConflict))
	assert.Equal(t, "two active applications at institution", err.Error())
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))

	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.EqualError(t, err, "internal server error: boom")
}

func TestWithDetailsCopiesSlice(t *testing.T) {
	reasons := []string{"finalGrade below 70"}
	err := WithDetails(ErrEligibility, "", reasons)
	reasons[0] = "mutated"

	assert.Equal(t, []string{"finalGrade below 70"}, err.Details)
	assert.Empty(t, ErrEligibility.Details)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Wrap(fmt.Errorf("dial tcp"), ErrStoreUnavailable.Code, ErrStoreUnavailable.Status, "db down").Retryable())
	assert.False(t, ErrValidation.Retryable())
}
