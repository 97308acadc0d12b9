package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migrations are applied in order inside a single transaction. Every statement is idempotent.
var migrations = []struct {
	name string
	up   string
}{
	{name: "001_catalog", up: `
CREATE TABLE IF NOT EXISTS institutions (
    id UUID PRIMARY KEY,
    code VARCHAR(32) NOT NULL UNIQUE,
    name VARCHAR(255) NOT NULL,
    admissions_published BOOLEAN NOT NULL DEFAULT FALSE,
    academic_year VARCHAR(16),
    application_deadline TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS courses (
    id UUID PRIMARY KEY,
    institution_id UUID NOT NULL REFERENCES institutions(id),
    name VARCHAR(255) NOT NULL,
    requirements JSONB NOT NULL DEFAULT '{}'::jsonb,
    capacity INTEGER,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    application_deadline TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT valid_capacity CHECK (capacity IS NULL OR capacity >= 0)
);

CREATE INDEX IF NOT EXISTS idx_courses_institution ON courses(institution_id);

CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    full_name VARCHAR(255) NOT NULL,
    email VARCHAR(255) NOT NULL UNIQUE,
    qualifications JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`},
	{name: "002_applications", up: `
CREATE TABLE IF NOT EXISTS applications (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id),
    institution_id UUID NOT NULL REFERENCES institutions(id),
    course_id UUID NOT NULL REFERENCES courses(id),
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    admission_accepted BOOLEAN NOT NULL DEFAULT FALSE,
    idempotency_key VARCHAR(128),
    applied_date TIMESTAMP WITH TIME ZONE NOT NULL,
    last_updated TIMESTAMP WITH TIME ZONE NOT NULL,
    CONSTRAINT valid_application_status CHECK (status IN ('pending', 'under_review', 'approved', 'rejected', 'admitted')),
    CONSTRAINT uq_application_student_course UNIQUE (student_id, course_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_applications_idempotency_key ON applications(idempotency_key) WHERE idempotency_key IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_applications_single_admission ON applications(student_id) WHERE admission_accepted;
CREATE INDEX IF NOT EXISTS idx_applications_institution_status ON applications(institution_id, status);
CREATE INDEX IF NOT EXISTS idx_applications_student ON applications(student_id);
`},
	{name: "003_audit_logs", up: `
CREATE TABLE IF NOT EXISTS audit_logs (
    id UUID PRIMARY KEY,
    user_id VARCHAR(64),
    action VARCHAR(64) NOT NULL,
    resource VARCHAR(64) NOT NULL,
    resource_id VARCHAR(64),
    old_values JSONB,
    new_values JSONB,
    ip_address VARCHAR(64) NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource, resource_id);
`},
}

// Migrate creates the admissions schema when absent.
func Migrate(ctx context.Context, db *sqlx.DB) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, m := range migrations {
		if _, err = tx.ExecContext(ctx, m.up); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}
