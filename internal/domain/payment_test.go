package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewPaymentSnapshotsPrices(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	res := ApplyDiscounts(basePrice(t), DiscountRate{MembershipFreeMinutes: 15})
	prices := PricesFromDiscount(res, "", monday10, 60)
	p := NewPayment(uuid.New(), nil, DirectionIncoming, OperationAuthorization, prices, now)

	if p.Status != PaymentPending || !p.Status.IsOpen() {
		t.Fatalf("expected open pending payment, got %s", p.Status)
	}
	if p.Currency != DefaultCurrency {
		t.Fatalf("expected default currency, got %q", p.Currency)
	}
	if p.TotalAmount != res.TotalAmount || p.PricingEngineVersion != PricingEngineCurrent {
		t.Fatalf("snapshot mismatch %+v", p)
	}
	if len(p.Prices.AuditTrail) != 1 {
		t.Fatalf("expected audit trail in snapshot, got %d entries", len(p.Prices.AuditTrail))
	}
}

func TestRepriceReplacesEveryTotal(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	p := NewPayment(uuid.New(), nil, DirectionIncoming, OperationAuthorization,
		PaymentPrices{TotalAmount: 90, TotalFullAmount: 120, TotalGstAmount: 8.18, Currency: "NZD"}, created)

	later := created.Add(time.Hour)
	next := PaymentPrices{EngineVersion: PricingEngineLegacy, TotalAmount: 90, TotalFullAmount: 100, TotalGstAmount: 7.5}
	p.Reprice(next, later)

	if p.TotalAmount != 90 || p.TotalFullAmount != 100 || p.TotalGstAmount != 7.5 {
		t.Fatalf("totals not replaced: %+v", p)
	}
	if p.Currency != DefaultCurrency || p.PricingEngineVersion != PricingEngineLegacy {
		t.Fatalf("expected default currency and legacy engine, got %q %s", p.Currency, p.PricingEngineVersion)
	}
	if p.Prices.TotalFullAmount != p.TotalFullAmount || !p.UpdatedAt.Equal(later) || !p.CreatedAt.Equal(created) {
		t.Fatalf("snapshot or timestamps inconsistent: %+v", p)
	}
}

func TestPaymentItems(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	p := NewPayment(uuid.New(), nil, DirectionIncoming, OperationAuthorization, PaymentPrices{TotalAmount: 90, TotalFullAmount: 90}, now)
	if p.UnfinishedItem() != nil {
		t.Fatalf("new payment has no items")
	}

	auth := p.AddItem(ItemAuthorization, 90.004, 8.181, now)
	if auth.Amount != 90 || auth.GstAmount != 8.18 || auth.Status != ItemPending {
		t.Fatalf("unexpected item %+v", auth)
	}
	if got := p.UnfinishedItem(); got == nil || got.ID != auth.ID {
		t.Fatalf("expected pending authorization to be unfinished")
	}
	p.Items[0].Status = ItemSucceeded
	if p.UnfinishedItem() != nil {
		t.Fatalf("succeeded item reported unfinished")
	}

	p.AddItem(ItemCapture, 90, 8.18, now).Status = ItemFailed
	if p.SucceededItem(ItemCapture) != nil {
		t.Fatalf("failed capture reported as succeeded")
	}
	if got := p.SucceededItem(ItemAuthorization); got == nil || got.ID != p.Items[0].ID {
		t.Fatalf("expected succeeded authorization")
	}
}

func TestPaymentStatusIsOpen(t *testing.T) {
	t.Parallel()

	open := map[PaymentStatus]bool{
		PaymentPending:          true,
		PaymentAuthorized:       true,
		PaymentCaptured:         false,
		PaymentCancelled:        false,
		PaymentTransferred:      false,
		PaymentWaitingForPayout: false,
		PaymentFailed:           false,
	}
	for status, want := range open {
		if status.IsOpen() != want {
			t.Fatalf("%s: IsOpen = %v", status, !want)
		}
	}
}

func TestBusinessHoursQualifier(t *testing.T) {
	t.Parallel()

	h := DefaultBusinessHours()
	cases := []struct {
		at   time.Time
		want RateQualifier
	}{
		{time.Date(2026, time.March, 2, 8, 59, 0, 0, time.UTC), QualifierAfterHours},
		{time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC), QualifierStandardHours},
		{time.Date(2026, time.March, 2, 17, 59, 0, 0, time.UTC), QualifierStandardHours},
		{time.Date(2026, time.March, 2, 18, 0, 0, 0, time.UTC), QualifierAfterHours},
		{time.Date(2026, time.March, 8, 12, 0, 0, 0, time.UTC), QualifierAfterHours},
	}
	for _, tc := range cases {
		if got := h.QualifierAt(tc.at); got != tc.want {
			t.Fatalf("QualifierAt(%s) = %s, want %s", tc.at, got, tc.want)
		}
	}

	next := h.NextBoundary(time.Date(2026, time.March, 2, 19, 0, 0, 0, time.UTC))
	if want := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("NextBoundary = %s, want %s", next, want)
	}
}
