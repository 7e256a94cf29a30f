package application

import (
	"errors"
	"testing"

	"github.com/viralforge/appointment-payments/internal/domain"
)

func TestRegistriesCoverEveryStage(t *testing.T) {
	t.Parallel()
	s := NewService(Dependencies{})

	cases := []struct {
		stage domain.Stage
		names []domain.StrategyName
		want  []domain.StrategyName
	}{
		{domain.StagePreAuthorization, s.preAuthorization.Names(), []domain.StrategyName{
			domain.StrategyCorporateDepositCharge,
			domain.StrategyCorporatePostPayment,
			domain.StrategyIndividualGatewayAuth,
			domain.StrategyValidationFailed,
			domain.StrategyWaitListRedirect,
		}},
		{domain.StagePreAuthorizationRecreate, s.recreate.Names(), []domain.StrategyName{
			domain.StrategyCancelAndReauthCorporate,
			domain.StrategyCancelAndReauthIndividual,
			domain.StrategyReattachExistingPayment,
			domain.StrategyValidationFailed,
		}},
		{domain.StagePreAuthorizationCancel, s.cancel.Names(), []domain.StrategyName{
			domain.StrategyCancelNotAllowed,
			domain.StrategyCorporateCancel,
			domain.StrategyIndividualCancel,
			domain.StrategyValidationFailed,
		}},
		{domain.StageCaptureAndTransfer, s.capture.Names(), []domain.StrategyName{
			domain.StrategyCorporateCapture,
			domain.StrategyIndividualCapture,
			domain.StrategySameCompanyCommission,
			domain.StrategyValidationFailed,
		}},
		{domain.StageTransfer, s.transfer.Names(), []domain.StrategyName{
			domain.StrategyCorporateWaitListRecord,
			domain.StrategyIndividualTransfer,
			domain.StrategyValidationFailed,
		}},
		{domain.StageDepositCharge, s.depositCharge.Names(), []domain.StrategyName{
			domain.StrategyDepositDebit,
			domain.StrategyValidationFailed,
		}},
	}
	for _, tc := range cases {
		if len(tc.names) != len(tc.want) {
			t.Fatalf("%s: got %v want %v", tc.stage, tc.names, tc.want)
		}
		for i := range tc.want {
			if tc.names[i] != tc.want[i] {
				t.Fatalf("%s: got %v want %v", tc.stage, tc.names, tc.want)
			}
		}
	}
}

func TestRegistryLookupUnknownStrategy(t *testing.T) {
	t.Parallel()
	s := NewService(Dependencies{})

	if _, err := s.transfer.lookup(domain.StrategyIndividualCapture); !errors.Is(err, domain.ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestRegistryRejectsDuplicateStrategies(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	newStrategyRegistry[*TransferContext](domain.StageTransfer,
		&individualTransferStrategy{},
		&individualTransferStrategy{},
	)
}

func TestPickRejectsMismatchedRequest(t *testing.T) {
	t.Parallel()
	s := NewService(Dependencies{})

	name, reason := s.cancel.pick(domain.StrategyCorporateCancel, string(domain.StrategyIndividualCancel))
	if name != domain.StrategyValidationFailed || reason == "" {
		t.Fatalf("mismatched request must fail validation, got %s %q", name, reason)
	}
	name, reason = s.capture.pick(domain.StrategyIndividualCapture, string(domain.StrategyCorporateCapture))
	if name != domain.StrategyValidationFailed || reason == "" {
		t.Fatalf("mismatched capture request must fail validation, got %s %q", name, reason)
	}
	if name, reason = s.cancel.pick(domain.StrategyIndividualCancel, string(domain.StrategyIndividualCancel)); name != domain.StrategyIndividualCancel || reason != "" {
		t.Fatalf("matching request dropped, got %s %q", name, reason)
	}
	if name, reason = s.cancel.pick(domain.StrategyValidationFailed, string(domain.StrategyCorporateCancel)); name != domain.StrategyValidationFailed || reason != "" {
		t.Fatalf("context validation failure must win, got %s %q", name, reason)
	}
	if name, _ = s.cancel.pick(domain.StrategyIndividualCancel, ""); name != domain.StrategyIndividualCancel {
		t.Fatalf("selected strategy dropped, got %s", name)
	}
	if name, _ = s.cancel.pick(domain.StrategyIndividualCancel, "teleport"); name != "teleport" {
		t.Fatalf("unknown names pass through to lookup, got %s", name)
	}
}
