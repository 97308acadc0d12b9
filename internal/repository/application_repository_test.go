package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/models"
)

var applicationRowColumns = []string{"id", "student_id", "institution_id", "course_id", "status", "admission_accepted", "idempotency_key", "applied_date", "last_updated"}

func newApplicationRepoMock(t *testing.T) (*ApplicationRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewApplicationRepository(sqlxDB), mock, func() { _ = sqlxDB.Close() }
}

func pendingApplication() *models.Application {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	return &models.Application{
		StudentID:     "stu-1",
		InstitutionID: "inst-1",
		CourseID:      "course-1",
		Status:        models.ApplicationStatusPending,
		AppliedDate:   now,
		LastUpdated:   now,
	}
}

func TestApplicationRepositoryFindByID(t *testing.T) {
	repo, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(applicationRowColumns).
		AddRow("app-1", "stu-1", "inst-1", "course-1", "approved", false, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE id = $1")).
		WithArgs("app-1").
		WillReturnRows(rows)

	app, err := repo.FindByID(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, app.Status)
	assert.Nil(t, app.IdempotencyKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryListBuildsFilter(t *testing.T) {
	repo, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE institution_id = $1 AND status = $2 ORDER BY applied_date DESC LIMIT 10 OFFSET 10")).
		WithArgs("inst-1", models.ApplicationStatusPending).
		WillReturnRows(sqlmock.NewRows(applicationRowColumns).AddRow("app-1", "stu-1", "inst-1", "course-1", "pending", false, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM applications WHERE institution_id = $1 AND status = $2")).
		WithArgs("inst-1", models.ApplicationStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	apps, total, err := repo.List(context.Background(), models.ApplicationFilter{InstitutionID: "inst-1", Status: models.ApplicationStatusPending, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, apps, 1)
	assert.Equal(t, 11, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCreateGuardedCommits(t *testing.T) {
	repo, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM students WHERE id = $1 FOR UPDATE")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("stu-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE student_id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows(applicationRowColumns).AddRow("app-0", "stu-1", "inst-1", "course-0", "pending", false, nil, now, now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "inst-1", "course-1", models.ApplicationStatusPending, false, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var seen []models.Application
	app := pendingApplication()
	err := repo.CreateGuarded(context.Background(), app, func(existing []models.Application) error {
		seen = existing
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, app.ID)
	require.Len(t, seen, 1)
	assert.Equal(t, "app-0", seen[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCreateGuardedRollsBackOnGuard(t *testing.T) {
	repo, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("stu-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE student_id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows(applicationRowColumns))
	mock.ExpectRollback()

	guardErr := errors.New("quota")
	err := repo.CreateGuarded(context.Background(), pendingApplication(), func([]models.Application) error { return guardErr })
	assert.ErrorIs(t, err, guardErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCreateGuardedMissingStudent(t *testing.T) {
	repo, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("stu-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.CreateGuarded(context.Background(), pendingApplication(), nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCreateGuardedUniqueViolation(t *testing.T) {
	repo, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("stu-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE student_id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows(applicationRowColumns))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_application_student_course"})
	mock.ExpectRollback()

	err := repo.CreateGuarded(context.Background(), pendingApplication(), nil)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateStatusGuardedCompareAndSwap(t *testing.T) {
	repo, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()

	at := time.Now().UTC()
	update := models.StatusUpdate{ApplicationID: "app-1", From: models.ApplicationStatusPending, To: models.ApplicationStatusApproved, UpdatedAt: at}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("stu-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE student_id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows(applicationRowColumns))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $1, admission_accepted = $2, last_updated = $3 WHERE id = $4 AND status = $5")).
		WithArgs(models.ApplicationStatusApproved, false, at, "app-1", models.ApplicationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateStatusGuarded(context.Background(), "stu-1", update, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateStatusGuardedLostRace(t *testing.T) {
	repo, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()

	update := models.StatusUpdate{ApplicationID: "app-1", From: models.ApplicationStatusPending, To: models.ApplicationStatusRejected, UpdatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("stu-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE student_id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows(applicationRowColumns))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateStatusGuarded(context.Background(), "stu-1", update, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
