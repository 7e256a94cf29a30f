package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// LoadPaymentContextForCancel gathers the open holds of a cancelled appointment
// and whether they may still be released free of charge.
func (s *Service) LoadPaymentContextForCancel(ctx context.Context, appointmentID uuid.UUID) (*CancelContext, error) {
	details, err := s.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByAppointment(ctx, appointmentID, domain.DirectionIncoming)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	entry, err := s.waitList.Get(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load wait list entry: %w", err)
	}
	return &CancelContext{
		Details:             details,
		IsCorporate:         details.Client.Role.IsCorporate(),
		OpenPayments:        openPayments(payments),
		IsWaitListed:        entry != nil,
		CancellationAllowed: freeCancellationAllowed(details.Appointment, s.nowFn()),
	}, nil
}

// freeCancellationAllowed applies the late-cancellation policy: bookings made a
// day ahead are free to cancel until a day before start, bookings made six hours
// ahead until six hours before start, and anything later is always charged.
func freeCancellationAllowed(appt domain.Appointment, now time.Time) bool {
	lead := appt.ScheduledStartTime.Sub(appt.CreatedAt)
	switch {
	case lead >= 24*time.Hour:
		return now.Before(appt.ScheduledStartTime.Add(-24 * time.Hour))
	case lead >= 6*time.Hour:
		return now.Before(appt.ScheduledStartTime.Add(-6 * time.Hour))
	default:
		return false
	}
}

func (s *Service) SelectCancelStrategy(cctx *CancelContext) domain.StrategyName {
	if cctx.Details.Appointment.Status == domain.AppointmentCompleted {
		cctx.ValidationReason = "appointment is completed"
		return domain.StrategyValidationFailed
	}
	if len(cctx.OpenPayments) > 0 && !cctx.CancellationAllowed {
		return domain.StrategyCancelNotAllowed
	}
	if cctx.IsCorporate {
		return domain.StrategyCorporateCancel
	}
	return domain.StrategyIndividualCancel
}

// MakePreAuthorizationCancel runs the cancel stage with the given strategy.
func (s *Service) MakePreAuthorizationCancel(ctx context.Context, strategy domain.StrategyName, cctx *CancelContext) (StageResult, error) {
	return runStage(ctx, s, s.cancel, strategy, cctx)
}

// closeOpenHolds re-reads the appointment's payments under lock and releases each open one.
func (s *Service) closeOpenHolds(ctx context.Context, repos ports.TxRepositories, cctx *CancelContext, release func(*domain.Payment) error) (stageOutcome, error) {
	id := cctx.appointmentID()
	payments, err := repos.Payments.LockByAppointment(ctx, id, domain.DirectionIncoming)
	if err != nil {
		return stageOutcome{}, fmt.Errorf("lock payments: %w", err)
	}
	var ids []uuid.UUID
	for _, p := range openPayments(payments) {
		if err := release(p); err != nil {
			return stageOutcome{}, err
		}
		ids = append(ids, p.ID)
	}
	if _, err := repos.WaitList.Delete(ctx, id); err != nil {
		return stageOutcome{}, fmt.Errorf("delete wait list entry: %w", err)
	}
	var effects []Effect
	if len(ids) > 0 {
		effects = append(effects, s.notifyEffect(notifyAuthorizationCancelled, id))
	}
	return stageOutcome{effects: effects, paymentIDs: ids}, nil
}

type individualCancelStrategy struct{ svc *Service }

func (st *individualCancelStrategy) Name() domain.StrategyName {
	return domain.StrategyIndividualCancel
}

func (st *individualCancelStrategy) Execute(ctx context.Context, repos ports.TxRepositories, cctx *CancelContext) (stageOutcome, error) {
	return st.svc.closeOpenHolds(ctx, repos, cctx, func(p *domain.Payment) error {
		return st.svc.cancelGatewayHold(ctx, repos, p, domain.StagePreAuthorizationCancel)
	})
}

type corporateCancelStrategy struct{ svc *Service }

func (st *corporateCancelStrategy) Name() domain.StrategyName {
	return domain.StrategyCorporateCancel
}

func (st *corporateCancelStrategy) Execute(ctx context.Context, repos ports.TxRepositories, cctx *CancelContext) (stageOutcome, error) {
	return st.svc.closeOpenHolds(ctx, repos, cctx, func(p *domain.Payment) error {
		return st.svc.releaseDepositHold(ctx, repos, p)
	})
}

// cancelNotAllowedStrategy keeps the hold and charges it through the capture stage.
type cancelNotAllowedStrategy struct{ svc *Service }

func (st *cancelNotAllowedStrategy) Name() domain.StrategyName {
	return domain.StrategyCancelNotAllowed
}

func (st *cancelNotAllowedStrategy) Execute(ctx context.Context, repos ports.TxRepositories, cctx *CancelContext) (stageOutcome, error) {
	s := st.svc
	id := cctx.appointmentID()
	if _, err := repos.WaitList.Delete(ctx, id); err != nil {
		return stageOutcome{}, fmt.Errorf("delete wait list entry: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(cctx.OpenPayments))
	for _, p := range cctx.OpenPayments {
		ids = append(ids, p.ID)
	}
	return stageOutcome{
		effects: []Effect{
			s.enqueueEffect(contracts.JobCaptureAndTransfer, id),
			s.notifyEffect(notifyLateCancellation, id),
		},
		paymentIDs: ids,
	}, nil
}
