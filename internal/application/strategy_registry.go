package application

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// stageContext is implemented by every per-stage context type.
type stageContext interface {
	appointmentID() uuid.UUID
	validationReason() string
}

type stageOutcome struct {
	effects    []Effect
	paymentIDs []uuid.UUID
}

// stageStrategy executes one variant of a stage inside the stage transaction.
type stageStrategy[C stageContext] interface {
	Name() domain.StrategyName
	Execute(ctx context.Context, repos ports.TxRepositories, c C) (stageOutcome, error)
}

type strategyRegistry[C stageContext] struct {
	stage  domain.Stage
	byName map[domain.StrategyName]stageStrategy[C]
}

func newStrategyRegistry[C stageContext](stage domain.Stage, strategies ...stageStrategy[C]) strategyRegistry[C] {
	byName := make(map[domain.StrategyName]stageStrategy[C], len(strategies))
	for _, st := range strategies {
		if _, dup := byName[st.Name()]; dup {
			panic(fmt.Sprintf("duplicate %s strategy %q", stage, st.Name()))
		}
		byName[st.Name()] = st
	}
	return strategyRegistry[C]{stage: stage, byName: byName}
}

func (r strategyRegistry[C]) lookup(name domain.StrategyName) (stageStrategy[C], error) {
	st, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no strategy %q", domain.ErrUnknownStrategy, r.stage, name)
	}
	return st, nil
}

// Names lists registered strategies in lexical order.
func (r strategyRegistry[C]) Names() []domain.StrategyName {
	out := make([]domain.StrategyName, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Service) registerStrategies() {
	s.preAuthorization = newStrategyRegistry[*AuthorizationContext](domain.StagePreAuthorization,
		&individualGatewayAuthStrategy{svc: s},
		&corporateDepositChargeStrategy{svc: s},
		&corporatePostPaymentStrategy{svc: s},
		&waitListRedirectStrategy{svc: s},
		&validationFailedStrategy[*AuthorizationContext]{svc: s, stage: domain.StagePreAuthorization},
	)
	s.recreate = newStrategyRegistry[*RecreateContext](domain.StagePreAuthorizationRecreate,
		&cancelAndReauthorizeStrategy{svc: s, name: domain.StrategyCancelAndReauthIndividual},
		&cancelAndReauthorizeStrategy{svc: s, name: domain.StrategyCancelAndReauthCorporate},
		&reattachExistingPaymentStrategy{svc: s},
		&validationFailedStrategy[*RecreateContext]{svc: s, stage: domain.StagePreAuthorizationRecreate},
	)
	s.cancel = newStrategyRegistry[*CancelContext](domain.StagePreAuthorizationCancel,
		&individualCancelStrategy{svc: s},
		&corporateCancelStrategy{svc: s},
		&cancelNotAllowedStrategy{svc: s},
		&validationFailedStrategy[*CancelContext]{svc: s, stage: domain.StagePreAuthorizationCancel},
	)
	s.capture = newStrategyRegistry[*SettlementContext](domain.StageCaptureAndTransfer,
		&individualCaptureStrategy{svc: s},
		&corporateCaptureStrategy{svc: s},
		&sameCompanyCommissionStrategy{svc: s},
		&validationFailedStrategy[*SettlementContext]{svc: s, stage: domain.StageCaptureAndTransfer},
	)
	s.transfer = newStrategyRegistry[*TransferContext](domain.StageTransfer,
		&individualTransferStrategy{svc: s},
		&corporateWaitListRecordStrategy{svc: s},
		&validationFailedStrategy[*TransferContext]{svc: s, stage: domain.StageTransfer},
	)
	s.depositCharge = newStrategyRegistry[*DepositChargeContext](domain.StageDepositCharge,
		&depositDebitStrategy{svc: s},
		&validationFailedStrategy[*DepositChargeContext]{svc: s, stage: domain.StageDepositCharge},
	)
}

// runStage executes a strategy in one transaction and runs its effects after commit.
// A strategy that discovers a validation failure under lock is rolled back and
// the failure is recorded through the stage's validation-failed sink.
func runStage[C stageContext](ctx context.Context, s *Service, reg strategyRegistry[C], name domain.StrategyName, c C) (StageResult, error) {
	result := StageResult{Stage: reg.stage, Strategy: name, AppointmentID: c.appointmentID()}
	logger := appLogger().With(
		"operation", string(reg.stage),
		"appointment_id", c.appointmentID().String(),
		"strategy", string(name),
	)

	strategy, err := reg.lookup(name)
	if err != nil {
		logger.ErrorContext(ctx, "payment stage rejected", "outcome", "failure", "error", err)
		return result, err
	}

	var outcome stageOutcome
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos ports.TxRepositories) error {
		var execErr error
		outcome, execErr = strategy.Execute(ctx, repos, c)
		return execErr
	})
	if err != nil && errors.Is(err, domain.ErrValidationFailed) && name != domain.StrategyValidationFailed {
		logger.WarnContext(ctx, "payment stage failed validation", "outcome", "failure", "error", err)
		return recordValidationFailure(ctx, s, reg, c, err.Error())
	}
	if err != nil {
		logger.ErrorContext(ctx, "payment stage failed", "outcome", "failure", "error", err)
		return result, err
	}

	result.Effects = outcome.effects
	result.PaymentIDs = outcome.paymentIDs
	if name == domain.StrategyValidationFailed {
		result.ValidationReason = c.validationReason()
	}
	if err := s.runEffects(ctx, outcome.effects); err != nil {
		logger.ErrorContext(ctx, "payment stage effects failed", "outcome", "failure", "error", err)
		return result, err
	}
	logger.InfoContext(ctx, "payment stage completed", "outcome", "success", "effect_count", len(outcome.effects))
	return result, nil
}

func recordValidationFailure[C stageContext](ctx context.Context, s *Service, reg strategyRegistry[C], c C, reason string) (StageResult, error) {
	sink := &validationFailedStrategy[C]{svc: s, stage: reg.stage, reasonOverride: reason}
	result := StageResult{
		Stage:            reg.stage,
		Strategy:         domain.StrategyValidationFailed,
		AppointmentID:    c.appointmentID(),
		ValidationReason: reason,
	}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, repos ports.TxRepositories) error {
		_, execErr := sink.Execute(ctx, repos, c)
		return execErr
	})
	if err != nil {
		appLogger().ErrorContext(ctx, "validation failure not recorded",
			"operation", string(reg.stage),
			"outcome", "failure",
			"appointment_id", c.appointmentID().String(),
			"strategy", string(domain.StrategyValidationFailed),
			"error", err,
		)
		return result, err
	}
	return result, nil
}

// validationFailedStrategy records a refused stage as data.
type validationFailedStrategy[C stageContext] struct {
	svc            *Service
	stage          domain.Stage
	reasonOverride string
}

func (st *validationFailedStrategy[C]) Name() domain.StrategyName {
	return domain.StrategyValidationFailed
}

func (st *validationFailedStrategy[C]) Execute(ctx context.Context, repos ports.TxRepositories, c C) (stageOutcome, error) {
	reason := st.reasonOverride
	if reason == "" {
		reason = c.validationReason()
	}
	if reason == "" {
		reason = "unspecified validation failure"
	}
	failure := domain.ValidationFailure{
		ID:            uuid.New(),
		AppointmentID: c.appointmentID(),
		Stage:         st.stage,
		Reason:        reason,
		Details:       validationDetails(c),
		CreatedAt:     st.svc.nowFn(),
	}
	if err := repos.ValidationFailures.Record(ctx, failure); err != nil {
		return stageOutcome{}, fmt.Errorf("record validation failure: %w", err)
	}
	return stageOutcome{}, nil
}

func validationDetails(c stageContext) map[string]any {
	details := map[string]any{}
	switch v := c.(type) {
	case *AuthorizationContext:
		details["operation"] = string(v.Operation)
		details["is_corporate"] = v.IsCorporate
		if v.Prices != nil {
			details["total_amount"] = v.Prices.TotalAmount
		}
	case *RecreateContext:
		if v.New != nil {
			details["new_appointment_id"] = v.New.Details.Appointment.ID.String()
		}
	case *CancelContext:
		details["open_payments"] = len(v.OpenPayments)
	case *SettlementContext:
		details["payments"] = len(v.Payments)
		details["is_same_company"] = v.IsSameCompany
	case *TransferContext:
		details["captured_incoming"] = len(v.CapturedIncoming)
	case *DepositChargeContext:
		details["company_id"] = v.CompanyID.String()
	}
	return details
}
