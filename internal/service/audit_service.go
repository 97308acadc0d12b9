package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/pkg/jobs"
)

const auditJobType = "audit_log"

type auditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService writes the audit trail off the request path through a job queue.
type AuditService struct {
	store   auditStore
	queue   *jobs.Queue
	logger  *zap.Logger
	timeout time.Duration
}

// AuditServiceConfig sizes the dispatcher.
type AuditServiceConfig struct {
	Workers      int
	Retries      int
	WriteTimeout time.Duration
}

// NewAuditService constructs the service. Call Start before recording.
func NewAuditService(store auditStore, cfg AuditServiceConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	svc := &AuditService{store: store, logger: logger, timeout: cfg.WriteTimeout}
	svc.queue = jobs.NewQueue("audit", svc.handle, jobs.QueueConfig{
		Workers:      cfg.Workers,
		MaxRetries:   cfg.Retries,
		DrainTimeout: 10 * time.Second,
		Logger:       logger,
	})
	return svc
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes buffered entries and stops the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record schedules an audit entry. When the queue cannot take it the entry is
// written inline so no trail is lost.
func (s *AuditService) Record(ctx context.Context, entry models.AuditLog) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	err := s.queue.TryEnqueue(jobs.Job{ID: entry.ID, Type: auditJobType, Payload: &entry})
	if err == nil {
		return
	}
	s.logger.Warn("audit queue unavailable, writing inline", zap.String("audit_id", entry.ID), zap.String("action", entry.Action), zap.Error(err))
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.store.CreateAuditLog(writeCtx, &entry); err != nil {
		s.logger.Error("failed to write audit log", zap.String("audit_id", entry.ID), zap.String("action", entry.Action), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	// A write that started before shutdown is allowed to finish.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	return s.store.CreateAuditLog(writeCtx, entry)
}
