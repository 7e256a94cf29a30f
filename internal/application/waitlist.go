package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// ReleaseDueWaitList queues pre-authorization for wait-listed appointments that
// have come within the authorization window. Entries of cancelled or missing
// appointments are dropped, as are entries released WaitListMaxAttempts times
// without authorizing. It returns the number of jobs queued.
func (s *Service) ReleaseDueWaitList(ctx context.Context) (int, error) {
	entries, err := s.waitList.ListOldest(ctx, s.cfg.WaitListBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list wait list: %w", err)
	}
	logger := appLogger().With("operation", "release_wait_list")
	now := s.nowFn()
	released := 0
	for _, entry := range entries {
		if entry.LastAttemptAt != nil && now.Sub(*entry.LastAttemptAt) < s.cfg.WaitListRetryInterval {
			continue
		}
		details, err := s.loadAppointment(ctx, entry.AppointmentID)
		if errors.Is(err, domain.ErrAppointmentNotFound) {
			if _, err := s.waitList.Delete(ctx, entry.AppointmentID); err != nil {
				return released, fmt.Errorf("delete wait list entry: %w", err)
			}
			continue
		}
		if err != nil {
			return released, err
		}
		appt := details.Appointment
		if appt.Status == domain.AppointmentCancelled || appt.Status == domain.AppointmentCompleted {
			if _, err := s.waitList.Delete(ctx, entry.AppointmentID); err != nil {
				return released, fmt.Errorf("delete wait list entry: %w", err)
			}
			continue
		}
		threshold := s.cfg.WaitListThreshold
		if entry.IsShortTimeSlot {
			threshold = s.cfg.ShortSlotWaitListThreshold
		}
		if appt.ScheduledStartTime.Sub(now) > threshold {
			continue
		}
		if entry.Attempts >= s.cfg.WaitListMaxAttempts {
			if err := s.abandonWaitListEntry(ctx, entry, now); err != nil {
				return released, err
			}
			logger.WarnContext(ctx, "wait-listed appointment abandoned",
				"outcome", "failure",
				"appointment_id", entry.AppointmentID.String(),
				"attempts", entry.Attempts,
			)
			continue
		}

		job := s.newJob(contracts.JobPreAuthorization, entry.AppointmentID)
		job.IsShortTimeSlot = entry.IsShortTimeSlot
		if err := s.EnqueueJob(ctx, job); err != nil {
			return released, fmt.Errorf("enqueue pre-authorization: %w", err)
		}
		if err := s.waitList.RecordAttempt(ctx, entry.AppointmentID, now); err != nil {
			return released, fmt.Errorf("record wait list attempt: %w", err)
		}
		logger.InfoContext(ctx, "wait-listed appointment released",
			"outcome", "success",
			"appointment_id", entry.AppointmentID.String(),
			"attempts", entry.Attempts+1,
		)
		released++
	}
	return released, nil
}

// abandonWaitListEntry drops an entry whose releases keep failing and records
// why, in one transaction.
func (s *Service) abandonWaitListEntry(ctx context.Context, entry domain.WaitListEntry, now time.Time) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos ports.TxRepositories) error {
		if _, err := repos.WaitList.Delete(ctx, entry.AppointmentID); err != nil {
			return fmt.Errorf("delete wait list entry: %w", err)
		}
		failure := domain.ValidationFailure{
			ID:            uuid.New(),
			AppointmentID: entry.AppointmentID,
			Stage:         domain.StagePreAuthorization,
			Reason:        fmt.Sprintf("wait list released %d times without authorization", entry.Attempts),
			Details: map[string]any{
				"attempts":           entry.Attempts,
				"is_short_time_slot": entry.IsShortTimeSlot,
			},
			CreatedAt: now,
		}
		if err := repos.ValidationFailures.Record(ctx, failure); err != nil {
			return fmt.Errorf("record validation failure: %w", err)
		}
		return nil
	})
}
