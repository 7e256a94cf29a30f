package domain

import "testing"

func TestAssessDeposit(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                  string
		balance, price, deflt float64
		insufficient, low     bool
		critical, needsTopUp  bool
		topUp                 float64
	}{
		{name: "healthy", balance: 1000, price: 90, deflt: 1000, topUp: 1000},
		{name: "below fifteen", balance: 230, price: 90, deflt: 1000, low: true, needsTopUp: true, topUp: 1000},
		{name: "below ten", balance: 180, price: 90, deflt: 1000, low: true, critical: true, needsTopUp: true, topUp: 1000},
		{name: "insufficient", balance: 50, price: 90, deflt: 1000, insufficient: true, low: true, critical: true, needsTopUp: true, topUp: 1040},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := AssessDeposit(tc.balance, tc.price, tc.deflt)
			if a.InsufficientFunds != tc.insufficient || a.BelowFifteenPercent != tc.low || a.BelowTenPercent != tc.critical {
				t.Fatalf("unexpected assessment %+v", a)
			}
			if a.NeedsTopUp() != tc.needsTopUp {
				t.Fatalf("NeedsTopUp = %v", a.NeedsTopUp())
			}
			if !approx(a.TopUpAmount(tc.deflt), tc.topUp) {
				t.Fatalf("TopUpAmount = %.2f, want %.2f", a.TopUpAmount(tc.deflt), tc.topUp)
			}
		})
	}
}

func TestPaymentPricesValidate(t *testing.T) {
	t.Parallel()

	ok := PaymentPrices{TotalFullAmount: 90, TotalAmount: 60, TotalGstAmount: 5.45}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid prices rejected: %v", err)
	}
	bad := PaymentPrices{TotalFullAmount: 60, TotalAmount: 90}
	if err := bad.Validate(); err == nil {
		t.Fatalf("total above full amount accepted")
	}
	if got := (PaymentPrices{TotalAmount: 90, InterpreterAmount: 72}).CommissionAmount(); !approx(got, 18) {
		t.Fatalf("expected commission 18, got %.2f", got)
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	for _, err := range []error{ErrValidationFailed, ErrAppointmentNotFound, ErrRatesNotFound, ErrInvalidInput, ErrUnknownStrategy} {
		if IsRetryable(err) {
			t.Fatalf("%v should not be retried", err)
		}
	}
	for _, err := range []error{ErrGatewayFailure, ErrSettlementInFlight, ErrConflict, ErrDependencyUnavailable} {
		if !IsRetryable(err) {
			t.Fatalf("%v should be retried", err)
		}
	}
}
