package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-api/internal/models"
)

const applicationColumns = `id, student_id, institution_id, course_id, status, admission_accepted, idempotency_key, applied_date, last_updated`

// ApplicationGuard re-validates invariants against the student's applications
// while their row is locked. A non-nil error aborts the write.
type ApplicationGuard func(existing []models.Application) error

// ApplicationRepository persists course applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindByIdempotencyKey returns the application created with the given client key.
func (r *ApplicationRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE idempotency_key = $1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, key); err != nil {
		return nil, err
	}
	return &app, nil
}

// ListByStudent returns every application of a student.
func (r *ApplicationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE student_id = $1 ORDER BY applied_date`
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, studentID); err != nil {
		return nil, fmt.Errorf("list student applications: %w", err)
	}
	return apps, nil
}

func buildApplicationWhere(filter models.ApplicationFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if filter.InstitutionID != "" {
		args = append(args, filter.InstitutionID)
		conditions = append(conditions, fmt.Sprintf("institution_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns a page of applications matching the filter with the total count.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	clause, args := buildApplicationWhere(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM applications%s ORDER BY applied_date DESC LIMIT %d OFFSET %d`, applicationColumns, clause, size, offset)
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM applications"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return apps, total, nil
}

// ListAll returns every application matching the filter, ignoring pagination.
func (r *ApplicationRepository) ListAll(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	clause, args := buildApplicationWhere(filter)
	query := `SELECT ` + applicationColumns + ` FROM applications` + clause
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, fmt.Errorf("list all applications: %w", err)
	}
	return apps, nil
}

// lockStudent serialises writers for one student and loads their applications.
func lockStudent(ctx context.Context, tx *sqlx.Tx, studentID string) ([]models.Application, error) {
	var locked string
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM students WHERE id = $1 FOR UPDATE`, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock student: %w", err)
	}
	var existing []models.Application
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE student_id = $1`
	if err := tx.SelectContext(ctx, &existing, query, studentID); err != nil {
		return nil, fmt.Errorf("load student applications: %w", err)
	}
	return existing, nil
}

// CreateGuarded inserts app in the same transaction that re-runs guard over the
// student's locked applications, so concurrent submissions cannot both pass a stale check.
func (r *ApplicationRepository) CreateGuarded(ctx context.Context, app *models.Application, guard ApplicationGuard) (err error) {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin application transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := lockStudent(ctx, tx, app.StudentID)
	if err != nil {
		return err
	}
	if guard != nil {
		if err = guard(existing); err != nil {
			return err
		}
	}

	const insert = `INSERT INTO applications (id, student_id, institution_id, course_id, status, admission_accepted, idempotency_key, applied_date, last_updated)
        VALUES (:id, :student_id, :institution_id, :course_id, :status, :admission_accepted, :idempotency_key, :applied_date, :last_updated)`
	if _, err = tx.NamedExecContext(ctx, insert, app); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicateKey
			return err
		}
		return fmt.Errorf("insert application: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit application: %w", err)
	}
	return nil
}

// UpdateStatusGuarded applies a compare-and-swap status change: the row is only
// written while its stored status still equals update.From. sql.ErrNoRows
// signals that another writer got there first (or the row is gone).
func (r *ApplicationRepository) UpdateStatusGuarded(ctx context.Context, studentID string, update models.StatusUpdate, guard ApplicationGuard) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := lockStudent(ctx, tx, studentID)
	if err != nil {
		return err
	}
	if guard != nil {
		if err = guard(existing); err != nil {
			return err
		}
	}

	const query = `UPDATE applications SET status = $1, admission_accepted = $2, last_updated = $3 WHERE id = $4 AND status = $5`
	result, err := tx.ExecContext(ctx, query, update.To, update.AdmissionAccepted, update.UpdatedAt, update.ApplicationID, update.From)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicateKey
			return err
		}
		return fmt.Errorf("update application status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check application update rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit application status: %w", err)
	}
	return nil
}
