package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// Notification templates handed to the notification subsystem.
const (
	notifyPaymentAuthorized      = "payment-authorized"
	notifyAuthorizationCancelled = "payment-authorization-cancelled"
	notifyLateCancellation       = "late-cancellation-charged"
	notifyDepositLow             = "company-deposit-low"
	notifyDepositCritical        = "company-deposit-critical"
	notifyDepositCharged         = "company-deposit-charged"
	notifyPayoutSent             = "interpreter-payout-sent"
)

func (s *Service) newJob(jobType string, appointmentID uuid.UUID) contracts.JobEnvelope {
	job := contracts.JobEnvelope{
		JobID:      uuid.NewString(),
		JobType:    jobType,
		EnqueuedAt: s.nowFn(),
	}
	if appointmentID != uuid.Nil {
		job.AppointmentID = appointmentID.String()
	}
	return job
}

func (s *Service) enqueueEffect(jobType string, appointmentID uuid.UUID) Effect {
	return Effect{Job: s.newJob(jobType, appointmentID), Critical: true}
}

func (s *Service) notifyEffect(template string, appointmentID uuid.UUID) Effect {
	job := s.newJob(contracts.JobNotificationSend, appointmentID)
	job.Notification = template
	return Effect{Job: job}
}

// runEffects enqueues every effect. Non-critical failures are logged and
// dropped; critical failures are returned together.
func (s *Service) runEffects(ctx context.Context, effects []Effect) error {
	var errs []error
	for _, e := range effects {
		if err := s.EnqueueJob(ctx, e.Job); err != nil {
			if e.Critical {
				errs = append(errs, fmt.Errorf("enqueue %s: %w", e.Job.JobType, err))
				continue
			}
			appLogger().WarnContext(ctx, "fire-and-forget job not enqueued",
				"operation", "run_effects",
				"outcome", "failure",
				"job_type", e.Job.JobType,
				"appointment_id", e.Job.AppointmentID,
				"error", err,
			)
		}
	}
	return errors.Join(errs...)
}

// EnqueueJob validates and durably queues a job.
func (s *Service) EnqueueJob(ctx context.Context, job contracts.JobEnvelope) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = s.nowFn()
	}
	if err := contracts.ValidateJob(job); err != nil {
		return err
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	eventID, err := uuid.Parse(job.JobID)
	if err != nil {
		return fmt.Errorf("parse job id: %w", err)
	}
	return s.jobs.Enqueue(ctx, ports.OutboxEvent{
		EventID:      eventID,
		EventType:    job.JobType,
		PartitionKey: partitionKey(job),
		Payload:      payload,
		OccurredAt:   job.EnqueuedAt,
	})
}

// partitionKey keeps every job of one appointment on one partition.
func partitionKey(job contracts.JobEnvelope) string {
	switch {
	case job.AppointmentID != "":
		return job.AppointmentID
	case job.CompanyID != "":
		return job.CompanyID
	default:
		return job.JobID
	}
}
