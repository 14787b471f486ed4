package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/pkg/logger"
)

// Emitter writes outbox events from handlers after successful mutations.
// A failed write is logged and dropped; the mutation itself already
// committed and consumers tolerate gaps.
type Emitter struct {
	outbox repository.OutboxRepository
	logger *logger.Logger
}

func NewEmitter(outbox repository.OutboxRepository, logger *logger.Logger) *Emitter {
	return &Emitter{outbox: outbox, logger: logger}
}

func (e *Emitter) Emit(ctx context.Context, eventType string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error(err, "failed to marshal outbox payload", "event_type", eventType)
		return
	}

	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   body,
		Status:    string(model.OutboxStatusPending),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := e.outbox.Create(ctx, event); err != nil {
		e.logger.Error(err, "failed to write outbox event", "event_type", eventType)
	}
}
