package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// LoadPaymentContextForRecreate pairs the live authorization of a replaced
// appointment with the authorization context of its successor.
func (s *Service) LoadPaymentContextForRecreate(ctx context.Context, oldAppointmentID, newAppointmentID uuid.UUID, opts ContextOptions) (*RecreateContext, error) {
	newCtx, err := s.LoadPaymentContextForAuthorization(ctx, newAppointmentID, opts)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByAppointment(ctx, oldAppointmentID, domain.DirectionIncoming)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	rctx := &RecreateContext{OldAppointmentID: oldAppointmentID, New: newCtx}
	for _, p := range livePayments(payments) {
		if p.Operation == domain.OperationAuthorization {
			rctx.OldPayment = p
		}
	}
	return rctx, nil
}

// SelectRecreateStrategy keeps an authorization whose amount still matches,
// otherwise voids it and authorizes the successor from scratch.
func (s *Service) SelectRecreateStrategy(rctx *RecreateContext) domain.StrategyName {
	old := rctx.OldPayment
	if old != nil && old.Status == domain.PaymentCaptured {
		rctx.ValidationReason = "replaced appointment was already captured"
		return domain.StrategyValidationFailed
	}
	n := rctx.New
	if old != nil && old.Status == domain.PaymentAuthorized && !n.IsWaitListRedirect && n.Prices != nil &&
		n.ExistingPayment == nil && domain.Round2(old.TotalAmount) == domain.Round2(n.Prices.TotalAmount) {
		return domain.StrategyReattachExistingPayment
	}
	if n.IsCorporate || (old != nil && old.CompanyID != nil) {
		return domain.StrategyCancelAndReauthCorporate
	}
	return domain.StrategyCancelAndReauthIndividual
}

// MakePreAuthorizationRecreate runs the recreate stage with the given strategy.
func (s *Service) MakePreAuthorizationRecreate(ctx context.Context, strategy domain.StrategyName, rctx *RecreateContext) (StageResult, error) {
	return runStage(ctx, s, s.recreate, strategy, rctx)
}

func (s *Service) reauthorizeEffect(rctx *RecreateContext) Effect {
	effect := s.enqueueEffect(contracts.JobPreAuthorization, rctx.New.appointmentID())
	effect.Job.IsShortTimeSlot = rctx.New.IsShortTimeSlot
	return effect
}

// lockOldPayment re-reads the replaced appointment's payment under lock.
func lockOldPayment(ctx context.Context, repos ports.TxRepositories, rctx *RecreateContext) (*domain.Payment, error) {
	if rctx.OldPayment == nil {
		return nil, nil
	}
	payments, err := repos.Payments.LockByAppointment(ctx, rctx.OldAppointmentID, domain.DirectionIncoming)
	if err != nil {
		return nil, fmt.Errorf("lock payments: %w", err)
	}
	for _, p := range payments {
		if p.ID == rctx.OldPayment.ID {
			return p, nil
		}
	}
	return nil, nil
}

type cancelAndReauthorizeStrategy struct {
	svc  *Service
	name domain.StrategyName
}

func (st *cancelAndReauthorizeStrategy) Name() domain.StrategyName { return st.name }

func (st *cancelAndReauthorizeStrategy) Execute(ctx context.Context, repos ports.TxRepositories, rctx *RecreateContext) (stageOutcome, error) {
	s := st.svc
	old, err := lockOldPayment(ctx, repos, rctx)
	if err != nil {
		return stageOutcome{}, err
	}
	var ids []uuid.UUID
	effects := []Effect{s.reauthorizeEffect(rctx)}
	if old != nil && old.Status == domain.PaymentCaptured {
		return stageOutcome{}, fmt.Errorf("%w: payment %s already captured", domain.ErrValidationFailed, old.ID)
	}
	if old != nil && old.Status.IsOpen() {
		if st.name == domain.StrategyCancelAndReauthCorporate {
			err = s.releaseDepositHold(ctx, repos, old)
		} else {
			err = s.cancelGatewayHold(ctx, repos, old, domain.StagePreAuthorizationRecreate)
		}
		if err != nil {
			return stageOutcome{}, err
		}
		ids = append(ids, old.ID)
	}
	if _, err := repos.WaitList.Delete(ctx, rctx.OldAppointmentID); err != nil {
		return stageOutcome{}, fmt.Errorf("delete wait list entry: %w", err)
	}
	return stageOutcome{effects: effects, paymentIDs: ids}, nil
}

// reattachExistingPaymentStrategy moves a still-valid authorization to the
// successor appointment without touching the gateway.
type reattachExistingPaymentStrategy struct{ svc *Service }

func (st *reattachExistingPaymentStrategy) Name() domain.StrategyName {
	return domain.StrategyReattachExistingPayment
}

func (st *reattachExistingPaymentStrategy) Execute(ctx context.Context, repos ports.TxRepositories, rctx *RecreateContext) (stageOutcome, error) {
	s := st.svc
	newID := rctx.New.appointmentID()
	old, err := lockOldPayment(ctx, repos, rctx)
	if err != nil {
		return stageOutcome{}, err
	}
	if old == nil {
		// A previous run already moved it.
		return stageOutcome{effects: []Effect{s.reauthorizeEffect(rctx)}}, nil
	}
	if old.Status != domain.PaymentAuthorized {
		return stageOutcome{}, fmt.Errorf("%w: payment %s is %s", domain.ErrValidationFailed, old.ID, old.Status)
	}
	current, err := repos.Payments.LockByAppointment(ctx, newID, domain.DirectionIncoming)
	if err != nil {
		return stageOutcome{}, fmt.Errorf("lock payments: %w", err)
	}
	if latestForWindow(current, domain.OperationAuthorization, rctx.New.Prices.WindowStart) != nil {
		return stageOutcome{}, fmt.Errorf("%w: appointment %s already has a payment", domain.ErrValidationFailed, newID)
	}

	old.AppointmentID = newID
	old.Reprice(*rctx.New.Prices, s.nowFn())
	if err := repos.Payments.Save(ctx, old); err != nil {
		return stageOutcome{}, fmt.Errorf("save payment: %w", err)
	}
	if _, err := repos.WaitList.Delete(ctx, rctx.OldAppointmentID); err != nil {
		return stageOutcome{}, fmt.Errorf("delete wait list entry: %w", err)
	}
	return stageOutcome{effects: []Effect{s.reauthorizeEffect(rctx)}, paymentIDs: []uuid.UUID{old.ID}}, nil
}
