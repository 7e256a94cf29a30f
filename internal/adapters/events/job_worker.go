package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/application"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// JobService is the part of the application the job worker drives.
type JobService interface {
	HandleJob(ctx context.Context, job contracts.JobEnvelope) (application.StageResult, error)
	EnqueueJob(ctx context.Context, job contracts.JobEnvelope) error
}

// JobWorker consumes payment jobs and runs their stage. Retryable failures are
// re-enqueued with a bumped attempt counter; the rest go to the dead-letter topic.
type JobWorker struct {
	logger       *slog.Logger
	consumer     Consumer
	service      JobService
	deadLetters  ports.JobQueue
	interval     time.Duration
	batchSize    int
	maxAttempts  int
	settleDelay  time.Duration
	maxSettleGap time.Duration
}

func NewJobWorker(logger *slog.Logger, consumer Consumer, service JobService, deadLetters ports.JobQueue, interval time.Duration, maxAttempts int) *JobWorker {
	if interval <= 0 {
		interval = time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &JobWorker{
		logger:       logger,
		consumer:     consumer,
		service:      service,
		deadLetters:  deadLetters,
		interval:     interval,
		batchSize:    50,
		maxAttempts:  maxAttempts,
		settleDelay:  500 * time.Millisecond,
		maxSettleGap: 30 * time.Second,
	}
}

func (w *JobWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := w.processOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("job processing failed",
				"module", "events.job_worker",
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

// RunOnce polls and handles a single batch.
func (w *JobWorker) RunOnce(ctx context.Context) error {
	return w.processOnce(ctx)
}

// processOnce settles every polled message in order. The consumer's fetch
// position has already moved past the whole batch and commits are cumulative
// per partition, so a message is never skipped: an unsettled one is retried in
// place until it settles or ctx ends.
func (w *JobWorker) processOnce(ctx context.Context) error {
	msgs, err := w.consumer.Poll(ctx, w.batchSize)
	if err != nil {
		return err
	}
	var commitErr error
	for _, msg := range msgs {
		if err := w.settle(ctx, msg); err != nil {
			return err
		}
		// A failed commit is covered by the next one on the partition.
		if err := w.consumer.Commit(ctx, msg); err != nil {
			commitErr = fmt.Errorf("commit offset: %w", err)
		}
	}
	return commitErr
}

func (w *JobWorker) settle(ctx context.Context, msg Message) error {
	delay := w.settleDelay
	for attempt := 1; ; attempt++ {
		err := w.handle(ctx, msg)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Error("job not settled, retrying in place",
			"module", "events.job_worker",
			"layer", "adapter",
			"operation", "settle",
			"outcome", "failure",
			"topic", msg.Topic,
			"key", msg.Key,
			"attempt", attempt,
			"retry_in", delay.String(),
			"error", err,
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > w.maxSettleGap {
			delay = w.maxSettleGap
		}
	}
}

// handle returns an error only when the message could not be settled at all,
// neither completed nor re-queued nor dead-lettered.
func (w *JobWorker) handle(ctx context.Context, msg Message) error {
	job, err := contracts.DecodeJob(msg.Payload)
	if err != nil {
		w.logger.Error("job payload rejected",
			"module", "events.job_worker",
			"layer", "adapter",
			"operation", "decode",
			"outcome", "failure",
			"topic", msg.Topic,
			"error", err,
		)
		return w.deadLetter(ctx, msg.Key, msg.Payload, err)
	}
	if !isPaymentJob(job.JobType) {
		return nil
	}

	result, err := w.service.HandleJob(ctx, job)
	if err == nil {
		w.logger.Info("job handled",
			"module", "events.job_worker",
			"layer", "adapter",
			"operation", job.JobType,
			"outcome", outcomeOf(result),
			"job_id", job.JobID,
			"strategy", string(result.Strategy),
			"appointment_id", job.AppointmentID,
			"attempt", job.Attempt,
		)
		return nil
	}

	if domain.IsRetryable(err) && job.Attempt+1 < w.maxAttempts {
		retry := job
		retry.JobID = uuid.NewString()
		retry.Attempt = job.Attempt + 1
		retry.LastError = err.Error()
		retry.EnqueuedAt = time.Time{}
		if qerr := w.service.EnqueueJob(ctx, retry); qerr != nil {
			return fmt.Errorf("requeue %s: %w", job.JobID, qerr)
		}
		w.logger.Warn("job failed, retry queued",
			"module", "events.job_worker",
			"layer", "adapter",
			"operation", job.JobType,
			"outcome", "failure",
			"job_id", job.JobID,
			"retry_job_id", retry.JobID,
			"attempt", retry.Attempt,
			"error", err,
		)
		return nil
	}

	job.LastError = err.Error()
	payload, merr := json.Marshal(job)
	if merr != nil {
		return merr
	}
	w.logger.Error("job moved to dlq",
		"module", "events.job_worker",
		"layer", "adapter",
		"operation", job.JobType,
		"outcome", "failure",
		"job_id", job.JobID,
		"attempt", job.Attempt,
		"error", err,
	)
	return w.deadLetter(ctx, msg.Key, payload, err)
}

func (w *JobWorker) deadLetter(ctx context.Context, key string, payload []byte, cause error) error {
	if w.deadLetters == nil {
		return nil
	}
	if err := w.deadLetters.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    contracts.JobDeadLetter,
		PartitionKey: key,
		Payload:      payload,
		OccurredAt:   time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("dead-letter after %v: %w", cause, err)
	}
	return nil
}

func isPaymentJob(jobType string) bool {
	for _, t := range contracts.PaymentJobTypes {
		if t == jobType {
			return true
		}
	}
	return false
}

func outcomeOf(result application.StageResult) string {
	if result.ValidationReason != "" {
		return "degraded"
	}
	return "success"
}
