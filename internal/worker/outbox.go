package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/clinicore/clinic-api/internal/config"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/pkg/logger"
	"github.com/clinicore/clinic-api/pkg/messaging"
	"github.com/clinicore/clinic-api/pkg/metrics"
)

// OutboxProcessor drains pending outbox events to the message broker.
// Events that keep failing past the retry limit are marked FAILED and
// left for operators; nothing blocks on a poisoned event.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	metrics *metrics.Metrics
	logger  *logger.Logger
	cfg     config.OutboxConfig
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	m *metrics.Metrics,
	logger *logger.Logger,
	cfg config.OutboxConfig,
) *OutboxProcessor {
	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		metrics: m,
		logger:  logger.WithComponent("outbox"),
		cfg:     cfg,
	}
}

// Run polls until the context is cancelled.
func (p *OutboxProcessor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.logger.Info("outbox processor started",
		"poll_interval", p.cfg.PollInterval.String(), "batch_size", p.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox processor stopped")
			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error(err, "outbox batch failed")
			}
		}
	}
}

func (p *OutboxProcessor) processBatch(ctx context.Context) error {
	events, err := p.repo.GetPendingEvents(ctx, p.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		p.processEvent(ctx, event)
	}
	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) {
	start := time.Now()

	var payload interface{}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		p.fail(ctx, event, err)
		return
	}

	message := messaging.Message{Type: event.EventType, Payload: payload}
	if err := p.broker.Publish(ctx, event.EventType, message); err != nil {
		p.fail(ctx, event, err)
		return
	}

	if err := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil); err != nil {
		p.logger.Error(err, "failed to mark outbox event processed", "event_id", event.ID)
		return
	}
	p.metrics.OutboxEventsProcessed.Inc()
	p.metrics.OutboxProcessingLatency.Observe(time.Since(start).Seconds())
}

func (p *OutboxProcessor) fail(ctx context.Context, event *model.OutboxEvent, cause error) {
	p.metrics.OutboxEventsFailed.Inc()

	status := model.OutboxStatusPending
	if event.RetryCount+1 >= p.cfg.MaxRetries {
		status = model.OutboxStatusFailed
	}

	msg := cause.Error()
	if err := p.repo.UpdateStatus(ctx, event.ID, status, &msg); err != nil {
		p.logger.Error(err, "failed to update outbox event status", "event_id", event.ID)
		return
	}
	p.logger.Error(cause, "outbox event delivery failed",
		"event_id", event.ID, "event_type", event.EventType,
		"retry_count", event.RetryCount+1, "status", string(status))
}

// CleanupProcessed removes processed events older than the retention
// window. Called from the same loop host as Run, on a slower cadence.
func (p *OutboxProcessor) CleanupProcessed(ctx context.Context, retention time.Duration) {
	deleted, err := p.repo.DeleteProcessedBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		p.logger.Error(err, "outbox cleanup failed")
		return
	}
	if deleted > 0 {
		p.logger.Info("outbox cleanup complete", "deleted", deleted)
	}
}
