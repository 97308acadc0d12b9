package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-api/internal/models"
)

const institutionColumns = `id, code, name, admissions_published, academic_year, application_deadline, created_at, updated_at`

// InstitutionRepository persists institutions.
type InstitutionRepository struct {
	db *sqlx.DB
}

// NewInstitutionRepository constructs the repository.
func NewInstitutionRepository(db *sqlx.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

// FindByID returns an institution by ID.
func (r *InstitutionRepository) FindByID(ctx context.Context, id string) (*models.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE id = $1`
	var inst models.Institution
	if err := r.db.GetContext(ctx, &inst, query, id); err != nil {
		return nil, err
	}
	return &inst, nil
}

// List returns all institutions ordered by name.
func (r *InstitutionRepository) List(ctx context.Context) ([]models.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions ORDER BY name`
	var items []models.Institution
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	return items, nil
}

// PublishAdmissions sets the published flag, academic year and deadline in one statement.
func (r *InstitutionRepository) PublishAdmissions(ctx context.Context, params models.PublishAdmissionsParams) error {
	const query = `UPDATE institutions SET admissions_published = TRUE, academic_year = $2, application_deadline = $3, updated_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, params.InstitutionID, params.AcademicYear, params.Deadline.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("publish admissions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check publish rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
