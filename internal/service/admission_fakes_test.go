package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/internal/repository"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

// memoryApplicationStore serialises guarded writes behind one mutex, the same
// guarantee the Postgres store gets from locking the student row.
type memoryApplicationStore struct {
	mu     sync.Mutex
	apps   map[string]models.Application
	seq    int
	err    error
	before func(update models.StatusUpdate)
}

func newMemoryApplicationStore() *memoryApplicationStore {
	return &memoryApplicationStore{apps: make(map[string]models.Application)}
}

func (m *memoryApplicationStore) put(app models.Application) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[app.ID] = app
}

func (m *memoryApplicationStore) get(id string) models.Application {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apps[id]
}

func (m *memoryApplicationStore) sorted(match func(models.Application) bool) []models.Application {
	var result []models.Application
	for _, app := range m.apps {
		if match(app) {
			result = append(result, app)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *memoryApplicationStore) FindByID(ctx context.Context, id string) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	app, ok := m.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &app, nil
}

func (m *memoryApplicationStore) FindByIdempotencyKey(ctx context.Context, key string) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, app := range m.apps {
		if app.IdempotencyKey != nil && *app.IdempotencyKey == key {
			found := app
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryApplicationStore) ListByStudent(ctx context.Context, studentID string) ([]models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.sorted(func(a models.Application) bool { return a.StudentID == studentID }), nil
}

func (m *memoryApplicationStore) matching(filter models.ApplicationFilter) []models.Application {
	return m.sorted(func(a models.Application) bool {
		return (filter.InstitutionID == "" || a.InstitutionID == filter.InstitutionID) &&
			(filter.StudentID == "" || a.StudentID == filter.StudentID) &&
			(filter.Status == "" || a.Status == filter.Status)
	})
}

func (m *memoryApplicationStore) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	all := m.matching(filter)
	start := (filter.Page - 1) * filter.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *memoryApplicationStore) ListAll(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.matching(filter), nil
}

func (m *memoryApplicationStore) CreateGuarded(ctx context.Context, app *models.Application, guard repository.ApplicationGuard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	existing := m.sorted(func(a models.Application) bool { return a.StudentID == app.StudentID })
	if guard != nil {
		if err := guard(existing); err != nil {
			return err
		}
	}
	for _, other := range m.apps {
		if other.StudentID == app.StudentID && other.CourseID == app.CourseID {
			return repository.ErrDuplicateKey
		}
		if app.IdempotencyKey != nil && other.IdempotencyKey != nil && *app.IdempotencyKey == *other.IdempotencyKey {
			return repository.ErrDuplicateKey
		}
	}
	m.seq++
	app.ID = fmt.Sprintf("app-%03d", m.seq)
	m.apps[app.ID] = *app
	return nil
}

func (m *memoryApplicationStore) UpdateStatusGuarded(ctx context.Context, studentID string, update models.StatusUpdate, guard repository.ApplicationGuard) error {
	if m.before != nil {
		m.before(update)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if guard != nil {
		if err := guard(m.sorted(func(a models.Application) bool { return a.StudentID == studentID })); err != nil {
			return err
		}
	}
	app, ok := m.apps[update.ApplicationID]
	if !ok || app.Status != update.From {
		return sql.ErrNoRows
	}
	app.Status = update.To
	app.AdmissionAccepted = update.AdmissionAccepted
	app.LastUpdated = update.UpdatedAt
	m.apps[app.ID] = app
	return nil
}

type memoryStudents map[string]*models.Student

func (m memoryStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := m[id]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

type memoryCatalog struct {
	institutions map[string]*models.Institution
	courses      map[string]*models.Course
}

func (m *memoryCatalog) Institution(ctx context.Context, id string) (*models.Institution, error) {
	if inst, ok := m.institutions[id]; ok {
		return inst, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
}

func (m *memoryCatalog) Course(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := m.courses[id]; ok {
		return course, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *recordingAudit) Record(ctx context.Context, entry models.AuditLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		actions = append(actions, e.Action)
	}
	return actions
}
