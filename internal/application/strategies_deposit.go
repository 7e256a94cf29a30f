package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// LoadDepositChargeContext reads the company and its pending top-up request.
func (s *Service) LoadDepositChargeContext(ctx context.Context, companyID uuid.UUID) (*DepositChargeContext, error) {
	dctx := &DepositChargeContext{CompanyID: companyID}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, repos ports.TxRepositories) error {
		company, err := repos.Companies.GetForUpdate(ctx, companyID)
		if err != nil {
			return fmt.Errorf("load company: %w", err)
		}
		charge, err := repos.DepositCharges.GetPending(ctx, companyID)
		if err != nil {
			return fmt.Errorf("load pending deposit charge: %w", err)
		}
		dctx.Company, dctx.Charge = company, charge
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dctx, nil
}

func (s *Service) SelectDepositChargeStrategy(dctx *DepositChargeContext) domain.StrategyName {
	if dctx.Charge != nil && dctx.Company.PaymentMethodRef == "" {
		dctx.ValidationReason = "company has no debit payment method"
		return domain.StrategyValidationFailed
	}
	return domain.StrategyDepositDebit
}

// ExecuteDepositCharge runs the company deposit charge stage.
func (s *Service) ExecuteDepositCharge(ctx context.Context, strategy domain.StrategyName, dctx *DepositChargeContext) (StageResult, error) {
	return runStage(ctx, s, s.depositCharge, strategy, dctx)
}

// depositDebitStrategy debits the company's payment method and credits the
// deposit. A missing pending charge means an earlier run already settled it.
type depositDebitStrategy struct{ svc *Service }

func (st *depositDebitStrategy) Name() domain.StrategyName { return domain.StrategyDepositDebit }

func (st *depositDebitStrategy) Execute(ctx context.Context, repos ports.TxRepositories, dctx *DepositChargeContext) (stageOutcome, error) {
	s := st.svc
	company, err := repos.Companies.GetForUpdate(ctx, dctx.CompanyID)
	if err != nil {
		return stageOutcome{}, fmt.Errorf("lock company: %w", err)
	}
	charge, err := repos.DepositCharges.GetPending(ctx, dctx.CompanyID)
	if err != nil {
		return stageOutcome{}, fmt.Errorf("load pending deposit charge: %w", err)
	}
	if charge == nil {
		return stageOutcome{}, nil
	}
	if company.PaymentMethodRef == "" {
		return stageOutcome{}, fmt.Errorf("%w: company %s has no debit payment method", domain.ErrValidationFailed, company.ID)
	}

	gctx, cancel := s.gatewayContext(ctx)
	defer cancel()
	if _, err := s.gateway.ChargeByGatewayDebit(gctx, ports.GatewayRequest{
		IdempotencyKey: "company:" + company.ID.String() + ":" + string(domain.StageDepositCharge) + ":" + charge.ID.String(),
		AmountMinor:    domain.ToMinorUnits(charge.Amount),
		Currency:       s.cfg.Currency,
		AccountRef:     company.PaymentMethodRef,
		Description:    fmt.Sprintf("Deposit top-up for %s", company.Name),
		Metadata:       map[string]string{"company_id": company.ID.String(), "charge_id": charge.ID.String()},
	}); err != nil {
		return stageOutcome{}, gatewayError("charge by gateway debit", err)
	}
	if _, err := repos.Companies.AdjustDepositBalance(ctx, company.ID, charge.Amount); err != nil {
		return stageOutcome{}, fmt.Errorf("credit deposit: %w", err)
	}
	if _, err := repos.DepositCharges.Delete(ctx, charge.ID); err != nil {
		return stageOutcome{}, fmt.Errorf("delete deposit charge: %w", err)
	}
	notify := s.notifyEffect(notifyDepositCharged, uuid.Nil)
	notify.Job.CompanyID = company.ID.String()
	return stageOutcome{effects: []Effect{notify}}, nil
}
