package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// MakePreAuthorization runs the pre-authorization stage with the given strategy.
func (s *Service) MakePreAuthorization(ctx context.Context, strategy domain.StrategyName, pctx *AuthorizationContext) (StageResult, error) {
	return runStage(ctx, s, s.preAuthorization, strategy, pctx)
}

// lockWindowPayment locks the incoming payments of the appointment and returns
// the live one for the context's billed window.
func lockWindowPayment(ctx context.Context, repos ports.TxRepositories, pctx *AuthorizationContext) (*domain.Payment, error) {
	if pctx.Prices == nil {
		return nil, fmt.Errorf("%w: appointment %s was not priced", domain.ErrValidationFailed, pctx.appointmentID())
	}
	payments, err := repos.Payments.LockByAppointment(ctx, pctx.appointmentID(), domain.DirectionIncoming)
	if err != nil {
		return nil, fmt.Errorf("lock payments: %w", err)
	}
	return latestForWindow(payments, pctx.Operation, pctx.Prices.WindowStart), nil
}

// preAuthorizedEffects continue the booking flow once funds are secured.
func (s *Service) preAuthorizedEffects(pctx *AuthorizationContext) []Effect {
	id := pctx.appointmentID()
	next := contracts.JobAppointmentSearchStart
	if pctx.Operation == domain.OperationAdditionalBlockAuthorization {
		next = contracts.JobAppointmentEndTimeExtension
	}
	effect := s.enqueueEffect(next, id)
	effect.Job.AdditionalBlockDuration = pctx.AdditionalBlockDuration
	return []Effect{effect, s.notifyEffect(notifyPaymentAuthorized, id)}
}

func persistPayment(ctx context.Context, repos ports.TxRepositories, payment *domain.Payment, created bool) error {
	if created {
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return nil
	}
	if err := repos.Payments.Save(ctx, payment); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	return nil
}

func gatewayKey(appointmentID uuid.UUID, stage domain.Stage, parts ...string) string {
	key := appointmentID.String() + ":" + string(stage)
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func windowKey(pctx *AuthorizationContext) string {
	return fmt.Sprintf("%s:%d", pctx.Operation, pctx.Prices.WindowStart.Unix())
}

func gatewayError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrGatewayFailure, op, err)
}

type individualGatewayAuthStrategy struct{ svc *Service }

func (st *individualGatewayAuthStrategy) Name() domain.StrategyName {
	return domain.StrategyIndividualGatewayAuth
}

func (st *individualGatewayAuthStrategy) Execute(ctx context.Context, repos ports.TxRepositories, pctx *AuthorizationContext) (stageOutcome, error) {
	s := st.svc
	id := pctx.appointmentID()
	payment, err := lockWindowPayment(ctx, repos, pctx)
	if err != nil {
		return stageOutcome{}, err
	}
	if payment != nil && (payment.Status == domain.PaymentAuthorized || payment.Status == domain.PaymentCaptured) {
		if _, err := repos.WaitList.Delete(ctx, id); err != nil {
			return stageOutcome{}, fmt.Errorf("delete wait list entry: %w", err)
		}
		return stageOutcome{effects: s.preAuthorizedEffects(pctx), paymentIDs: []uuid.UUID{payment.ID}}, nil
	}
	if payment != nil && payment.UnfinishedItem() != nil {
		return stageOutcome{}, fmt.Errorf("%w: payment %s", domain.ErrSettlementInFlight, payment.ID)
	}

	now := s.nowFn()
	created := payment == nil
	if created {
		payment = domain.NewPayment(id, nil, domain.DirectionIncoming, pctx.Operation, *pctx.Prices, now)
	}

	item := payment.AddItem(domain.ItemAuthorization, payment.TotalAmount, payment.TotalGstAmount, now)
	if payment.TotalAmount <= 0 {
		item.Status = domain.ItemSucceeded
		item.Note = "fully discounted"
		payment.Status = domain.PaymentAuthorized
	} else {
		gctx, cancel := s.gatewayContext(ctx)
		defer cancel()
		auth, err := s.gateway.CreateAuthorization(gctx, ports.GatewayRequest{
			IdempotencyKey: gatewayKey(id, domain.StagePreAuthorization, windowKey(pctx)),
			AmountMinor:    domain.ToMinorUnits(payment.TotalAmount),
			Currency:       payment.Currency,
			AccountRef:     pctx.Details.Client.PaymentMethodRef,
			Description:    fmt.Sprintf("Interpreting appointment %s", id),
			Metadata: map[string]string{
				"appointment_id": id.String(),
				"payment_id":     payment.ID.String(),
				"operation":      string(pctx.Operation),
			},
		})
		if err != nil {
			return stageOutcome{}, gatewayError("create authorization", err)
		}
		item.ExternalID = auth.ExternalID
		item.Status = domain.ItemSucceeded
		item.UpdatedAt = now
		payment.Status = domain.PaymentAuthorized

		// A hold placed this close to the start has no value; settle it now.
		if pctx.Timing.IsTooLateToAuthorize {
			captured, err := s.gateway.CaptureAuthorization(gctx, ports.GatewayRequest{
				IdempotencyKey: gatewayKey(id, domain.StageCaptureAndTransfer, payment.ID.String()),
				AmountMinor:    domain.ToMinorUnits(payment.TotalAmount),
				Currency:       payment.Currency,
				ExternalID:     auth.ExternalID,
			})
			if err != nil {
				return stageOutcome{}, gatewayError("capture authorization", err)
			}
			capture := payment.AddItem(domain.ItemCapture, payment.TotalAmount, payment.TotalGstAmount, now)
			capture.ExternalID = captured.ExternalID
			capture.Status = domain.ItemSucceeded
			capture.Note = "captured at authorization"
			payment.Status = domain.PaymentCaptured
		}
	}
	payment.UpdatedAt = now
	if err := persistPayment(ctx, repos, payment, created); err != nil {
		return stageOutcome{}, err
	}
	if _, err := repos.WaitList.Delete(ctx, id); err != nil {
		return stageOutcome{}, fmt.Errorf("delete wait list entry: %w", err)
	}
	return stageOutcome{effects: s.preAuthorizedEffects(pctx), paymentIDs: []uuid.UUID{payment.ID}}, nil
}

// corporateDepositChargeStrategy reserves the price against the company deposit.
// A short balance never fails the stage; it queues a top-up.
type corporateDepositChargeStrategy struct{ svc *Service }

func (st *corporateDepositChargeStrategy) Name() domain.StrategyName {
	return domain.StrategyCorporateDepositCharge
}

func (st *corporateDepositChargeStrategy) Execute(ctx context.Context, repos ports.TxRepositories, pctx *AuthorizationContext) (stageOutcome, error) {
	s := st.svc
	id := pctx.appointmentID()
	if pctx.Details.Company == nil {
		return stageOutcome{}, fmt.Errorf("%w: appointment %s has no company", domain.ErrValidationFailed, id)
	}
	companyID := pctx.Details.Company.ID
	company, err := repos.Companies.GetForUpdate(ctx, companyID)
	if err != nil {
		return stageOutcome{}, fmt.Errorf("lock company: %w", err)
	}
	payment, err := lockWindowPayment(ctx, repos, pctx)
	if err != nil {
		return stageOutcome{}, err
	}
	if payment != nil && (payment.Status == domain.PaymentAuthorized || payment.Status == domain.PaymentCaptured) {
		return stageOutcome{effects: s.preAuthorizedEffects(pctx), paymentIDs: []uuid.UUID{payment.ID}}, nil
	}
	if payment != nil && payment.UnfinishedItem() != nil {
		return stageOutcome{}, fmt.Errorf("%w: payment %s", domain.ErrSettlementInFlight, payment.ID)
	}

	now := s.nowFn()
	created := payment == nil
	if created {
		payment = domain.NewPayment(id, &companyID, domain.DirectionIncoming, pctx.Operation, *pctx.Prices, now)
	}
	assessment := domain.AssessDeposit(company.DepositBalance, payment.TotalAmount, company.DepositDefaultCharge)
	if _, err := repos.Companies.AdjustDepositBalance(ctx, companyID, -payment.TotalAmount); err != nil {
		return stageOutcome{}, fmt.Errorf("reserve deposit: %w", err)
	}
	item := payment.AddItem(domain.ItemDepositReservation, payment.TotalAmount, payment.TotalGstAmount, now)
	item.Status = domain.ItemSucceeded
	if assessment.InsufficientFunds {
		item.Note = domain.ErrInsufficientFunds.Error()
	}
	payment.Status = domain.PaymentAuthorized
	payment.UpdatedAt = now
	if err := persistPayment(ctx, repos, payment, created); err != nil {
		return stageOutcome{}, err
	}

	effects := s.preAuthorizedEffects(pctx)
	if assessment.NeedsTopUp() {
		topUp, err := s.requestDepositTopUp(ctx, repos, company, assessment)
		if err != nil {
			return stageOutcome{}, err
		}
		effects = append(effects, topUp...)
	}
	return stageOutcome{effects: effects, paymentIDs: []uuid.UUID{payment.ID}}, nil
}

// requestDepositTopUp creates a pending deposit charge unless one already waits.
func (s *Service) requestDepositTopUp(ctx context.Context, repos ports.TxRepositories, company *domain.Company, assessment domain.DepositAssessment) ([]Effect, error) {
	template := notifyDepositLow
	if assessment.InsufficientFunds || assessment.BelowTenPercent {
		template = notifyDepositCritical
	}
	notify := s.notifyEffect(template, uuid.Nil)
	notify.Job.CompanyID = company.ID.String()

	pending, err := repos.DepositCharges.GetPending(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("load pending deposit charge: %w", err)
	}
	if pending != nil {
		return []Effect{notify}, nil
	}
	charge := domain.CompanyDepositCharge{
		ID:        uuid.New(),
		CompanyID: company.ID,
		Amount:    assessment.TopUpAmount(company.DepositDefaultCharge),
		CreatedAt: s.nowFn(),
	}
	if charge.Amount <= 0 {
		return []Effect{notify}, nil
	}
	if err := repos.DepositCharges.Create(ctx, charge); err != nil {
		return nil, fmt.Errorf("create deposit charge: %w", err)
	}
	job := s.enqueueEffect(contracts.JobCompanyDepositCharge, uuid.Nil)
	job.Job.CompanyID = company.ID.String()
	return []Effect{job, notify}, nil
}

// corporatePostPaymentStrategy records the obligation; the company is invoiced later.
type corporatePostPaymentStrategy struct{ svc *Service }

func (st *corporatePostPaymentStrategy) Name() domain.StrategyName {
	return domain.StrategyCorporatePostPayment
}

func (st *corporatePostPaymentStrategy) Execute(ctx context.Context, repos ports.TxRepositories, pctx *AuthorizationContext) (stageOutcome, error) {
	s := st.svc
	if pctx.Details.Company == nil {
		return stageOutcome{}, fmt.Errorf("%w: appointment %s has no company", domain.ErrValidationFailed, pctx.appointmentID())
	}
	payment, err := lockWindowPayment(ctx, repos, pctx)
	if err != nil {
		return stageOutcome{}, err
	}
	if payment != nil && payment.Status != domain.PaymentPending {
		return stageOutcome{effects: s.preAuthorizedEffects(pctx), paymentIDs: []uuid.UUID{payment.ID}}, nil
	}
	now := s.nowFn()
	created := payment == nil
	if created {
		companyID := pctx.Details.Company.ID
		payment = domain.NewPayment(pctx.appointmentID(), &companyID, domain.DirectionIncoming, pctx.Operation, *pctx.Prices, now)
	}
	payment.Status = domain.PaymentAuthorized
	payment.UpdatedAt = now
	if err := persistPayment(ctx, repos, payment, created); err != nil {
		return stageOutcome{}, err
	}
	return stageOutcome{effects: s.preAuthorizedEffects(pctx), paymentIDs: []uuid.UUID{payment.ID}}, nil
}

// waitListRedirectStrategy parks the appointment; matching continues without a hold.
type waitListRedirectStrategy struct{ svc *Service }

func (st *waitListRedirectStrategy) Name() domain.StrategyName {
	return domain.StrategyWaitListRedirect
}

func (st *waitListRedirectStrategy) Execute(ctx context.Context, repos ports.TxRepositories, pctx *AuthorizationContext) (stageOutcome, error) {
	s := st.svc
	id := pctx.appointmentID()
	existing, err := repos.WaitList.Get(ctx, id)
	if err != nil {
		return stageOutcome{}, fmt.Errorf("load wait list entry: %w", err)
	}
	if existing == nil {
		if err := repos.WaitList.Upsert(ctx, domain.WaitListEntry{
			AppointmentID:   id,
			IsShortTimeSlot: pctx.IsShortTimeSlot,
			CreatedAt:       s.nowFn(),
		}); err != nil {
			return stageOutcome{}, fmt.Errorf("create wait list entry: %w", err)
		}
	}
	return stageOutcome{effects: []Effect{s.enqueueEffect(contracts.JobAppointmentSearchStart, id)}}, nil
}
