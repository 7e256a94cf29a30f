package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// LoadPaymentContextForCapture gathers the live incoming payments of a finished
// or late-cancelled appointment.
func (s *Service) LoadPaymentContextForCapture(ctx context.Context, appointmentID uuid.UUID) (*SettlementContext, error) {
	details, err := s.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByAppointment(ctx, appointmentID, domain.DirectionIncoming)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return &SettlementContext{
		Details:       details,
		IsCorporate:   details.Client.Role.IsCorporate(),
		IsSameCompany: sameCompany(details),
		Payments:      livePayments(payments),
	}, nil
}

// sameCompany reports a corporate client served by an interpreter of its own company.
func sameCompany(details domain.AppointmentDetails) bool {
	if details.Interpreter == nil || details.Interpreter.CompanyID == nil || details.Client.CompanyID == nil {
		return false
	}
	return *details.Interpreter.CompanyID == *details.Client.CompanyID
}

func (s *Service) SelectCaptureStrategy(sctx *SettlementContext) domain.StrategyName {
	if len(sctx.Payments) == 0 {
		sctx.ValidationReason = "no payment to capture"
		return domain.StrategyValidationFailed
	}
	if sctx.IsCorporate && sctx.Details.Company == nil {
		sctx.ValidationReason = "corporate client has no company"
		return domain.StrategyValidationFailed
	}
	switch {
	case sctx.IsSameCompany:
		return domain.StrategySameCompanyCommission
	case sctx.IsCorporate:
		return domain.StrategyCorporateCapture
	default:
		return domain.StrategyIndividualCapture
	}
}

// MakeCaptureAndTransfer runs the capture stage with the given strategy.
// Payments that are already captured are left untouched, so re-delivery is safe.
func (s *Service) MakeCaptureAndTransfer(ctx context.Context, strategy domain.StrategyName, sctx *SettlementContext) (StageResult, error) {
	return runStage(ctx, s, s.capture, strategy, sctx)
}

// settleAuthorized locks the appointment's incoming payments and applies settle to
// each authorized one. It fails validation when nothing is or was captured.
func settleAuthorized(ctx context.Context, repos ports.TxRepositories, sctx *SettlementContext, settle func(*domain.Payment) error) ([]uuid.UUID, error) {
	id := sctx.appointmentID()
	payments, err := repos.Payments.LockByAppointment(ctx, id, domain.DirectionIncoming)
	if err != nil {
		return nil, fmt.Errorf("lock payments: %w", err)
	}
	var ids []uuid.UUID
	for _, p := range payments {
		switch p.Status {
		case domain.PaymentCaptured:
			ids = append(ids, p.ID)
		case domain.PaymentAuthorized:
			if p.UnfinishedItem() != nil {
				return nil, fmt.Errorf("%w: payment %s", domain.ErrSettlementInFlight, p.ID)
			}
			if err := settle(p); err != nil {
				return nil, err
			}
			if err := repos.Payments.Save(ctx, p); err != nil {
				return nil, fmt.Errorf("save payment: %w", err)
			}
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: appointment %s has no authorized payment", domain.ErrValidationFailed, id)
	}
	return ids, nil
}

func (s *Service) capturedEffects(id uuid.UUID, transfer bool) []Effect {
	var effects []Effect
	if transfer {
		effects = append(effects, s.enqueueEffect(contracts.JobTransfer, id))
	}
	receipt := s.newJob(contracts.JobReceiptGenerate, id)
	return append(effects, Effect{Job: receipt})
}

type individualCaptureStrategy struct{ svc *Service }

func (st *individualCaptureStrategy) Name() domain.StrategyName {
	return domain.StrategyIndividualCapture
}

func (st *individualCaptureStrategy) Execute(ctx context.Context, repos ports.TxRepositories, sctx *SettlementContext) (stageOutcome, error) {
	s := st.svc
	ids, err := settleAuthorized(ctx, repos, sctx, func(p *domain.Payment) error {
		now := s.nowFn()
		auth := p.SucceededItem(domain.ItemAuthorization)
		if auth == nil {
			return fmt.Errorf("%w: payment %s has no authorization", domain.ErrValidationFailed, p.ID)
		}
		var externalID string
		if auth.ExternalID != "" && p.TotalAmount > 0 {
			gctx, cancel := s.gatewayContext(ctx)
			defer cancel()
			res, err := s.gateway.CaptureAuthorization(gctx, ports.GatewayRequest{
				IdempotencyKey: gatewayKey(p.AppointmentID, domain.StageCaptureAndTransfer, p.ID.String()),
				AmountMinor:    domain.ToMinorUnits(p.TotalAmount),
				Currency:       p.Currency,
				ExternalID:     auth.ExternalID,
			})
			if err != nil {
				return gatewayError("capture authorization", err)
			}
			externalID = res.ExternalID
		}
		item := p.AddItem(domain.ItemCapture, p.TotalAmount, p.TotalGstAmount, now)
		item.ExternalID = externalID
		item.Status = domain.ItemSucceeded
		p.Status = domain.PaymentCaptured
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return stageOutcome{}, err
	}
	return stageOutcome{effects: s.capturedEffects(sctx.appointmentID(), true), paymentIDs: ids}, nil
}

// corporateCaptureStrategy settles deposit reservations and post-payment
// obligations; neither touches the gateway.
type corporateCaptureStrategy struct{ svc *Service }

func (st *corporateCaptureStrategy) Name() domain.StrategyName {
	return domain.StrategyCorporateCapture
}

func (st *corporateCaptureStrategy) Execute(ctx context.Context, repos ports.TxRepositories, sctx *SettlementContext) (stageOutcome, error) {
	s := st.svc
	ids, err := settleAuthorized(ctx, repos, sctx, func(p *domain.Payment) error {
		now := s.nowFn()
		item := p.AddItem(domain.ItemCapture, p.TotalAmount, p.TotalGstAmount, now)
		item.Status = domain.ItemSucceeded
		if p.SucceededItem(domain.ItemDepositReservation) == nil {
			item.Note = "invoiced to company"
		}
		p.Status = domain.PaymentCaptured
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return stageOutcome{}, err
	}
	return stageOutcome{effects: s.capturedEffects(sctx.appointmentID(), true), paymentIDs: ids}, nil
}

// sameCompanyCommissionStrategy charges only the platform commission when a
// company's own interpreter served the booking; nothing is paid out.
type sameCompanyCommissionStrategy struct{ svc *Service }

func (st *sameCompanyCommissionStrategy) Name() domain.StrategyName {
	return domain.StrategySameCompanyCommission
}

func (st *sameCompanyCommissionStrategy) Execute(ctx context.Context, repos ports.TxRepositories, sctx *SettlementContext) (stageOutcome, error) {
	s := st.svc
	ids, err := settleAuthorized(ctx, repos, sctx, func(p *domain.Payment) error {
		now := s.nowFn()
		commission := p.Prices.CommissionAmount()
		_, commissionGst := domain.SplitGST(commission)
		if p.TotalGstAmount == 0 {
			commissionGst = 0
		}
		item := p.AddItem(domain.ItemCommission, commission, commissionGst, now)
		item.Status = domain.ItemSucceeded

		if p.SucceededItem(domain.ItemDepositReservation) != nil {
			if p.CompanyID == nil {
				return fmt.Errorf("%w: deposit payment %s has no company", domain.ErrValidationFailed, p.ID)
			}
			remainder := domain.Round2(p.TotalAmount - commission)
			if remainder > 0 {
				if _, err := repos.Companies.AdjustDepositBalance(ctx, *p.CompanyID, remainder); err != nil {
					return fmt.Errorf("release deposit: %w", err)
				}
				release := p.AddItem(domain.ItemDepositRelease, remainder, domain.Round2(p.TotalGstAmount-commissionGst), now)
				release.Status = domain.ItemSucceeded
			}
		}
		p.Status = domain.PaymentCaptured
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return stageOutcome{}, err
	}
	return stageOutcome{effects: s.capturedEffects(sctx.appointmentID(), false), paymentIDs: ids}, nil
}
