package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/pkg/logger"
)

// Service is the audit sink for mutations and authorization decisions.
// Failures are logged, never propagated: an audit write must not take the
// request down with it.
type Service struct {
	repo   repository.AuditRepository
	logger *logger.Logger
}

func NewService(repo repository.AuditRepository, logger *logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

type LogOptions struct {
	Changes   interface{}
	Metadata  interface{}
	IPAddress string
	UserAgent string
}

// Log creates an audit log entry.
func (s *Service) Log(ctx context.Context, userID, clinicID uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	var changes, metadata json.RawMessage
	var ipAddress, userAgent string

	if opts != nil {
		if opts.Changes != nil {
			changes, _ = json.Marshal(opts.Changes)
		}
		if opts.Metadata != nil {
			metadata, _ = json.Marshal(opts.Metadata)
		}
		ipAddress = opts.IPAddress
		userAgent = opts.UserAgent
	}

	entry := &model.AuditLog{
		ID:         uuid.New(),
		UserID:     userID,
		ClinicID:   clinicID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    changes,
		Metadata:   metadata,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		CreatedAt:  time.Now(),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error(err, "failed to write audit log",
			"action", action, "entity_type", entityType)
	}
}

// LogAccessDecision records the outcome of one authorization check.
func (s *Service) LogAccessDecision(ctx context.Context, userID, clinicID uuid.UUID, decision *model.AccessDecision, opts *LogOptions) {
	if decision.CheckedAt.IsZero() {
		decision.CheckedAt = time.Now()
	}
	if opts == nil {
		opts = &LogOptions{}
	}
	opts.Metadata = decision
	s.Log(ctx, userID, clinicID, model.AuditActionAccessCheck, model.AuditEntityEndpoint, uuid.Nil, opts)
}

// List returns audit entries matching the filters.
func (s *Service) List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditLog, error) {
	return s.repo.List(ctx, filters)
}
