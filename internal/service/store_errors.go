package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/noah-isme/admissions-api/internal/repository"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

// storeError maps a persistence failure onto the API taxonomy. Typed errors
// pass through, missing rows become NotFound, values the database cannot parse
// become a terminal ValidationError and everything else is reported as a
// retryable StoreUnavailable.
func storeError(err error, resource, action string) error {
	if err == nil {
		return nil
	}
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, resource+" not found")
	}
	if repository.IsInvalidInput(err) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed "+resource+" reference")
	}
	message := "failed to " + action
	if errors.Is(err, context.DeadlineExceeded) {
		message += ": store timed out"
	}
	return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, message)
}

func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
