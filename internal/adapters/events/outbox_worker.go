package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// OutboxWorker relays queued jobs from the outbox table to the broker.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
}

func NewOutboxWorker(
	logger *slog.Logger,
	outbox ports.OutboxRepository,
	publisher ports.EventPublisher,
	interval time.Duration,
	batchSize int,
	claimTTL time.Duration,
	maxRetries int,
) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if claimTTL <= 0 {
		claimTTL = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxWorker{
		logger:     logger,
		outbox:     outbox,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		claimTTL:   claimTTL,
		maxRetries: maxRetries,
	}
}

func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil {
			w.logger.Error("outbox processing failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce processes a single batch. Used by tooling and tests.
func (w *OutboxWorker) RunOnce(ctx context.Context) error {
	return w.processOnce(ctx)
}

func (w *OutboxWorker) processOnce(ctx context.Context) error {
	claimToken := uuid.NewString()
	now := time.Now().UTC()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, now.Add(w.claimTTL))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	published, failed, deadLettered := 0, 0, 0
	for _, record := range records {
		if record.RetryCount >= w.maxRetries {
			if err := w.outbox.MarkDeadLettered(ctx, record.OutboxID, claimToken, "max retries exceeded", time.Now().UTC()); err != nil {
				return err
			}
			deadLettered++
			continue
		}
		if err := w.publisher.Publish(ctx, record.EventType, record.Payload, record.PartitionKey); err != nil {
			at := time.Now().UTC()
			if record.RetryCount+1 >= w.maxRetries {
				if markErr := w.outbox.MarkDeadLettered(ctx, record.OutboxID, claimToken, err.Error(), at); markErr != nil {
					return markErr
				}
				deadLettered++
				w.logger.Error("outbox message moved to dlq",
					"module", "events.outbox_worker",
					"layer", "adapter",
					"operation", "publish",
					"outcome", "failure",
					"outbox_id", record.OutboxID,
					"event_type", record.EventType,
					"retry_count", record.RetryCount+1,
					"error", err,
				)
				continue
			}
			if markErr := w.outbox.MarkFailed(ctx, record.OutboxID, claimToken, err.Error(), at); markErr != nil {
				return markErr
			}
			failed++
			w.logger.Warn("outbox publish failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "publish",
				"outcome", "failure",
				"outbox_id", record.OutboxID,
				"event_type", record.EventType,
				"retry_count", record.RetryCount+1,
				"error", err,
			)
			continue
		}
		if err := w.outbox.MarkPublished(ctx, record.OutboxID, claimToken, time.Now().UTC()); err != nil {
			return err
		}
		published++
	}

	w.logger.Info("outbox batch processed",
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", "process_once",
		"outcome", "success",
		"claimed", len(records),
		"published", published,
		"failed", failed,
		"dead_lettered", deadLettered,
	)
	return nil
}
