package service

import (
	"context"

	"github.com/Raivel16/gestor-tareas/internal/domain"
	"github.com/Raivel16/gestor-tareas/internal/logger"
)

const (
	DefaultActivityLimit = 50
	MaxActivityLimit     = 200
)

type auditStore interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.AuditLog, error)
}

// AuditService handles audit logging. Write failures are logged and swallowed.
type AuditService struct {
	repo auditStore
}

// NewAuditService creates a new audit service
func NewAuditService(repo auditStore) *AuditService {
	return &AuditService{repo: repo}
}

// Log creates a new audit log entry
func (s *AuditService) Log(ctx context.Context, userID int64, action, category string, details map[string]interface{}) {
	s.LogWithRequest(ctx, userID, action, category, "", "", details)
}

// LogWithRequest creates an audit log with request info (IP, User-Agent)
func (s *AuditService) LogWithRequest(ctx context.Context, userID int64, action, category, ip, userAgent string, details map[string]interface{}) {
	if s == nil || s.repo == nil {
		return
	}
	log := &domain.AuditLog{
		UserID:    userID,
		Action:    action,
		Category:  category,
		Details:   details,
		IP:        ip,
		UserAgent: userAgent,
	}

	if err := s.repo.Create(ctx, log); err != nil {
		logger.WithContext(ctx).Errorw("failed to create audit log", "error", err, "action", action, "user_id", userID)
	}
}

// LogTask logs a task mutation
func (s *AuditService) LogTask(ctx context.Context, userID int64, action string, taskID int64, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["task_id"] = taskID

	s.Log(ctx, userID, action, domain.AuditCategoryTask, details)
}

// ListForUser returns the user's newest entries; limit is clamped to [1, MaxActivityLimit].
func (s *AuditService) ListForUser(ctx context.Context, userID int64, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	if limit > MaxActivityLimit {
		limit = MaxActivityLimit
	}
	return s.repo.ListByUser(ctx, userID, limit)
}
