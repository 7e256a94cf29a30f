package domain

import (
	"reflect"
	"testing"
)

func basePrice(t *testing.T) BaseCalculationResult {
	t.Helper()
	res, err := ComputeBasePrice(priceInput(t, monday10, 60))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	return res
}

func blockSum(r DiscountResult) float64 {
	var sum float64
	for _, b := range r.Blocks {
		sum += b.FinalAmount
	}
	return Round2(sum)
}

func TestApplyDiscountsWithoutDiscountKeepsBasePrice(t *testing.T) {
	t.Parallel()

	res := ApplyDiscounts(basePrice(t), DiscountRate{})
	if !approx(res.TotalAmount, 90) || !approx(res.TotalFullAmount, 90) || !approx(res.TotalGstAmount, 8.18) {
		t.Fatalf("unexpected totals %+v", res)
	}
	if len(res.AuditTrail) != 0 {
		t.Fatalf("expected empty audit trail, got %v", res.Labels())
	}
	if res.EngineVersion != PricingEngineCurrent {
		t.Fatalf("expected current engine, got %s", res.EngineVersion)
	}
}

func TestApplyDiscountsFreeMinutesProRateFirstBlock(t *testing.T) {
	t.Parallel()

	res := ApplyDiscounts(basePrice(t), DiscountRate{MembershipFreeMinutes: 15})
	if !approx(res.Blocks[0].FinalAmount, 30) {
		t.Fatalf("expected first block 30 after 15 free minutes, got %.2f", res.Blocks[0].FinalAmount)
	}
	if !approx(res.Blocks[1].FinalAmount, 30) {
		t.Fatalf("additional block should be untouched, got %.2f", res.Blocks[1].FinalAmount)
	}
	if !approx(res.TotalAmount, 60) || !approx(res.TotalGstAmount, 5.45) {
		t.Fatalf("unexpected totals %.2f / %.2f", res.TotalAmount, res.TotalGstAmount)
	}
	if got := res.Labels(); !reflect.DeepEqual(got, []string{"Membership Free Minutes (15min)"}) {
		t.Fatalf("unexpected audit trail %v", got)
	}
}

func TestApplyDiscountsFreeMinutesSpanBlocks(t *testing.T) {
	t.Parallel()

	res := ApplyDiscounts(basePrice(t), DiscountRate{MembershipFreeMinutes: 45})
	if res.Blocks[0].FinalAmount != 0 || !approx(res.Blocks[1].FinalAmount, 15) {
		t.Fatalf("unexpected block amounts %.2f, %.2f", res.Blocks[0].FinalAmount, res.Blocks[1].FinalAmount)
	}
	want := []string{"Membership Free Minutes (30min)", "Membership Free Minutes (15min)"}
	if got := res.Labels(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestApplyDiscountsOrderFreeMinutesThenMembership(t *testing.T) {
	t.Parallel()

	res := ApplyDiscounts(basePrice(t), DiscountRate{MembershipFreeMinutes: 15, MembershipDiscountPercent: 10})
	want := []string{
		"Membership Free Minutes (15min)",
		"Membership Discount (10%)",
		"Membership Discount (10%)",
	}
	if got := res.Labels(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if !approx(res.TotalAmount, 54) {
		t.Fatalf("expected 54, got %.2f", res.TotalAmount)
	}
}

func TestApplyDiscountsPromoAndMembershipAreExclusive(t *testing.T) {
	t.Parallel()

	promo := ApplyDiscounts(basePrice(t), DiscountRate{MembershipDiscountPercent: 10, PromoDiscountPercent: 20, PromoCampaignName: "spring"})
	if !approx(promo.TotalAmount, 72) {
		t.Fatalf("expected promo price 72, got %.2f", promo.TotalAmount)
	}
	for _, d := range promo.AuditTrail {
		if d.Kind == DiscountMembershipPercentage {
			t.Fatalf("membership percentage must not stack with a winning promo: %v", promo.Labels())
		}
	}

	tie := ApplyDiscounts(basePrice(t), DiscountRate{MembershipDiscountPercent: 10, PromoDiscountPercent: 10})
	for _, d := range tie.AuditTrail {
		if d.Kind != DiscountMembershipPercentage {
			t.Fatalf("membership should win a tie, got %v", tie.Labels())
		}
	}
	if !approx(tie.TotalAmount, 81) {
		t.Fatalf("expected 81, got %.2f", tie.TotalAmount)
	}
}

func TestApplyDiscountsPromoMinutes(t *testing.T) {
	t.Parallel()

	res := ApplyDiscounts(basePrice(t), DiscountRate{PromoDiscountPercent: 50, PromoDiscountMinutes: 15})
	if !approx(res.Blocks[0].FinalAmount, 45) || !approx(res.Blocks[1].FinalAmount, 30) {
		t.Fatalf("unexpected blocks %.2f, %.2f", res.Blocks[0].FinalAmount, res.Blocks[1].FinalAmount)
	}
	want := []string{"Promo Campaign Minutes Discount (15min at 50%)"}
	if got := res.Labels(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestApplyDiscountsNeverBelowZero(t *testing.T) {
	t.Parallel()

	res := ApplyDiscounts(basePrice(t), DiscountRate{MembershipFreeMinutes: 600, MembershipDiscountPercent: 50})
	if res.TotalAmount != 0 || res.TotalGstAmount != 0 {
		t.Fatalf("expected zero price, got %.2f / %.2f", res.TotalAmount, res.TotalGstAmount)
	}
	for _, b := range res.Blocks {
		if b.FinalAmount < 0 {
			t.Fatalf("negative block amount %+v", b)
		}
	}
	if !approx(res.TotalDiscountAmount, 90) {
		t.Fatalf("expected full discount, got %.2f", res.TotalDiscountAmount)
	}
}

func TestApplyDiscountsIsPure(t *testing.T) {
	t.Parallel()

	base := basePrice(t)
	before := base.Blocks[0].ClientAmount
	rate := DiscountRate{MembershipFreeMinutes: 15, PromoDiscountPercent: 30}
	first := ApplyDiscounts(base, rate)
	second := ApplyDiscounts(base, rate)
	if base.Blocks[0].ClientAmount != before {
		t.Fatalf("base price mutated")
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated application differs")
	}
}

func TestDiscountedBlocksSumToTotal(t *testing.T) {
	t.Parallel()

	rates := []DiscountRate{
		{},
		{MembershipFreeMinutes: 7},
		{MembershipDiscountPercent: 12.5},
		{PromoDiscountPercent: 33, PromoDiscountMinutes: 20},
		{MembershipFreeMinutes: 20, MembershipDiscountPercent: 15},
	}
	for _, r := range rates {
		current := ApplyDiscounts(basePrice(t), r)
		if !approx(blockSum(current), current.TotalAmount) {
			t.Fatalf("current engine %+v: blocks %.2f != total %.2f", r, blockSum(current), current.TotalAmount)
		}
		legacy := ApplyLegacyDiscounts(basePrice(t), r, true)
		if !approx(blockSum(legacy), legacy.TotalAmount) {
			t.Fatalf("legacy engine %+v: blocks %.2f != total %.2f", r, blockSum(legacy), legacy.TotalAmount)
		}
		if current.TotalAmount > current.TotalFullAmount || current.TotalGstAmount > current.TotalAmount {
			t.Fatalf("price invariants broken for %+v: %+v", r, current)
		}
	}
}
