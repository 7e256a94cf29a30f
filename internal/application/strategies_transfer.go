package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// LoadPaymentContextForTransfer gathers captured client payments and any payouts
// already recorded against them.
func (s *Service) LoadPaymentContextForTransfer(ctx context.Context, appointmentID uuid.UUID) (*TransferContext, error) {
	details, err := s.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	incoming, err := s.payments.ListByAppointment(ctx, appointmentID, domain.DirectionIncoming)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	outgoing, err := s.payments.ListByAppointment(ctx, appointmentID, domain.DirectionOutgoing)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	tctx := &TransferContext{Details: details, Outgoing: outgoing}
	for _, p := range incoming {
		if p.Status == domain.PaymentCaptured {
			tctx.CapturedIncoming = append(tctx.CapturedIncoming, p)
		}
	}
	return tctx, nil
}

func (s *Service) SelectTransferStrategy(tctx *TransferContext) domain.StrategyName {
	interp := tctx.Details.Interpreter
	switch {
	case interp == nil:
		tctx.ValidationReason = "no interpreter assigned"
	case len(tctx.CapturedIncoming) == 0:
		tctx.ValidationReason = "no captured payment to transfer"
	case interp.CompanyID != nil:
		return domain.StrategyCorporateWaitListRecord
	case interp.PayoutAccountRef == "":
		tctx.ValidationReason = "interpreter has no payout account"
	default:
		return domain.StrategyIndividualTransfer
	}
	return domain.StrategyValidationFailed
}

// MakeTransfer runs the transfer stage with the given strategy.
func (s *Service) MakeTransfer(ctx context.Context, strategy domain.StrategyName, tctx *TransferContext) (StageResult, error) {
	return runStage(ctx, s, s.transfer, strategy, tctx)
}

// payoutPrices derives the interpreter's share of a captured payment. The share
// is re-based when the interpreter's GST registration changed after pricing.
func payoutPrices(incoming *domain.Payment, interp *domain.Interpreter) domain.PaymentPrices {
	prices := incoming.Prices
	amount, gst := prices.InterpreterAmount, prices.InterpreterGstAmount
	switch {
	case !interp.IsGstPayer && gst > 0:
		amount, gst = domain.Round2(amount-gst), 0
	case interp.IsGstPayer && gst == 0 && amount > 0:
		amount = domain.Round2(amount * domain.GSTCoefficient)
		_, gst = domain.SplitGST(amount)
	}
	prices.TotalFullAmount = amount
	prices.TotalAmount = amount
	prices.TotalGstAmount = gst
	prices.InterpreterAmount = amount
	prices.InterpreterGstAmount = gst
	prices.AuditTrail = nil
	prices.Blocks = nil
	return prices
}

// eachPayout locks the appointment's payouts and calls pay for every captured
// client payment that has not been paid out yet. Payouts already settled count
// as handled, so only an appointment without any captured payment fails.
func eachPayout(ctx context.Context, repos ports.TxRepositories, tctx *TransferContext, pay func(incoming, payout *domain.Payment, created bool) error) error {
	id := tctx.appointmentID()
	incoming, err := repos.Payments.LockByAppointment(ctx, id, domain.DirectionIncoming)
	if err != nil {
		return fmt.Errorf("lock payments: %w", err)
	}
	outgoing, err := repos.Payments.LockByAppointment(ctx, id, domain.DirectionOutgoing)
	if err != nil {
		return fmt.Errorf("lock payouts: %w", err)
	}
	handled := 0
	for _, in := range incoming {
		if in.Status != domain.PaymentCaptured {
			continue
		}
		handled++
		payout := latestForWindow(outgoing, domain.OperationTransfer, in.Prices.WindowStart)
		created := payout == nil
		if !created && payout.Status != domain.PaymentPending {
			continue
		}
		if !created && payout.UnfinishedItem() != nil {
			return fmt.Errorf("%w: payout %s", domain.ErrSettlementInFlight, payout.ID)
		}
		if err := pay(in, payout, created); err != nil {
			return err
		}
	}
	if handled == 0 {
		return fmt.Errorf("%w: appointment %s has no captured payment", domain.ErrValidationFailed, id)
	}
	return nil
}

type individualTransferStrategy struct{ svc *Service }

func (st *individualTransferStrategy) Name() domain.StrategyName {
	return domain.StrategyIndividualTransfer
}

func (st *individualTransferStrategy) Execute(ctx context.Context, repos ports.TxRepositories, tctx *TransferContext) (stageOutcome, error) {
	s := st.svc
	id := tctx.appointmentID()
	interp := tctx.Details.Interpreter
	var paid []uuid.UUID
	err := eachPayout(ctx, repos, tctx, func(in, payout *domain.Payment, created bool) error {
		now := s.nowFn()
		if created {
			payout = domain.NewPayment(id, nil, domain.DirectionOutgoing, domain.OperationTransfer, payoutPrices(in, interp), now)
		}
		var externalID string
		if payout.TotalAmount > 0 {
			gctx, cancel := s.gatewayContext(ctx)
			defer cancel()
			res, err := s.gateway.TransferFunds(gctx, ports.GatewayRequest{
				IdempotencyKey: gatewayKey(id, domain.StageTransfer, in.ID.String()),
				AmountMinor:    domain.ToMinorUnits(payout.TotalAmount),
				Currency:       payout.Currency,
				AccountRef:     interp.PayoutAccountRef,
				Description:    fmt.Sprintf("Payout for appointment %s", id),
				Metadata: map[string]string{
					"appointment_id":      id.String(),
					"incoming_payment_id": in.ID.String(),
					"interpreter_id":      interp.ID.String(),
				},
			})
			if err != nil {
				return gatewayError("transfer funds", err)
			}
			externalID = res.ExternalID
		}
		item := payout.AddItem(domain.ItemTransfer, payout.TotalAmount, payout.TotalGstAmount, now)
		item.ExternalID = externalID
		item.Status = domain.ItemSucceeded
		payout.Status = domain.PaymentTransferred
		payout.UpdatedAt = now
		if err := persistPayment(ctx, repos, payout, created); err != nil {
			return err
		}
		paid = append(paid, payout.ID)
		return nil
	})
	if err != nil {
		return stageOutcome{}, err
	}
	var effects []Effect
	if len(paid) > 0 {
		effects = append(effects,
			Effect{Job: s.newJob(contracts.JobPayoutReceiptGenerate, id)},
			s.notifyEffect(notifyPayoutSent, id),
		)
	}
	return stageOutcome{effects: effects, paymentIDs: paid}, nil
}

// corporateWaitListRecordStrategy records the payout owed to an interpreting
// company; companies are paid out in batches outside this pipeline.
type corporateWaitListRecordStrategy struct{ svc *Service }

func (st *corporateWaitListRecordStrategy) Name() domain.StrategyName {
	return domain.StrategyCorporateWaitListRecord
}

func (st *corporateWaitListRecordStrategy) Execute(ctx context.Context, repos ports.TxRepositories, tctx *TransferContext) (stageOutcome, error) {
	s := st.svc
	id := tctx.appointmentID()
	interp := tctx.Details.Interpreter
	var recorded []uuid.UUID
	err := eachPayout(ctx, repos, tctx, func(in, payout *domain.Payment, created bool) error {
		now := s.nowFn()
		if created {
			payout = domain.NewPayment(id, interp.CompanyID, domain.DirectionOutgoing, domain.OperationTransfer, payoutPrices(in, interp), now)
		}
		payout.Status = domain.PaymentWaitingForPayout
		payout.UpdatedAt = now
		if err := persistPayment(ctx, repos, payout, created); err != nil {
			return err
		}
		recorded = append(recorded, payout.ID)
		return nil
	})
	if err != nil {
		return stageOutcome{}, err
	}
	return stageOutcome{paymentIDs: recorded}, nil
}
