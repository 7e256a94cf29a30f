package domain

import "time"

// PricingEngineVersion selects which discount stacking rules price an appointment.
type PricingEngineVersion string

const (
	PricingEngineLegacy  PricingEngineVersion = "v1-legacy"
	PricingEngineCurrent PricingEngineVersion = "v2"
)

// SelectPricingEngine picks the engine by appointment creation time. Appointments
// created before the cut-over keep the rules they were quoted with.
func SelectPricingEngine(createdAt, cutover time.Time) PricingEngineVersion {
	if !cutover.IsZero() && createdAt.Before(cutover) {
		return PricingEngineLegacy
	}
	return PricingEngineCurrent
}

// ApplyLegacyDiscounts reproduces the pre-cut-over stacking rules:
// free minutes, then membership percentage, then the promo stacked on top when it
// beats the membership percentage. Intermediate amounts are not rounded; only the
// final block amounts are. With gstBefore the GST is taken from the undiscounted
// price and scaled down with the discount.
func ApplyLegacyDiscounts(base BaseCalculationResult, rate DiscountRate, gstBefore bool) DiscountResult {
	amounts := make([]float64, len(base.Blocks))
	billable := make([]int, len(base.Blocks))
	for i, b := range base.Blocks {
		amounts[i] = b.ClientAmount
		billable[i] = b.Minutes
	}
	type pending struct {
		d      AppliedDiscount
		amount float64
	}
	var applied []pending
	add := func(d AppliedDiscount, amount float64) {
		applied = append(applied, pending{d: d, amount: amount})
	}

	freeLeft := rate.MembershipFreeMinutes
	for i, b := range base.Blocks {
		if freeLeft <= 0 {
			break
		}
		if b.Minutes <= 0 {
			continue
		}
		used := min(freeLeft, b.Minutes)
		freeLeft -= used
		discount := amounts[i] * float64(used) / float64(b.Minutes)
		amounts[i] = clampZero(amounts[i] - discount)
		billable[i] = b.Minutes - used
		add(AppliedDiscount{Kind: DiscountMembershipFreeMinutes, Label: freeMinutesLabel(used), BlockIndex: i, Minutes: used}, discount)
	}

	if rate.MembershipDiscountPercent > 0 {
		for i := range amounts {
			if amounts[i] <= 0 {
				continue
			}
			discount := amounts[i] * rate.MembershipDiscountPercent / 100
			amounts[i] = clampZero(amounts[i] - discount)
			add(AppliedDiscount{
				Kind:       DiscountMembershipPercentage,
				Label:      membershipLabel(rate.MembershipDiscountPercent),
				BlockIndex: i,
				Percent:    rate.MembershipDiscountPercent,
			}, discount)
		}
	}

	if rate.PromoWins() {
		promoLeft := rate.PromoDiscountMinutes
		for i := range amounts {
			if amounts[i] <= 0 || billable[i] <= 0 {
				continue
			}
			if rate.PromoDiscountMinutes > 0 {
				if promoLeft <= 0 {
					break
				}
				covered := min(promoLeft, billable[i])
				promoLeft -= covered
				discount := amounts[i] * float64(covered) / float64(billable[i]) * rate.PromoDiscountPercent / 100
				amounts[i] = clampZero(amounts[i] - discount)
				add(AppliedDiscount{
					Kind:       DiscountPromoCampaignMinutes,
					Label:      promoMinutesLabel(covered, rate.PromoDiscountPercent),
					BlockIndex: i,
					Minutes:    covered,
					Percent:    rate.PromoDiscountPercent,
				}, discount)
				continue
			}
			discount := amounts[i] * rate.PromoDiscountPercent / 100
			amounts[i] = clampZero(amounts[i] - discount)
			add(AppliedDiscount{
				Kind:       DiscountPromoCampaign,
				Label:      promoLabel(rate.PromoDiscountPercent),
				BlockIndex: i,
				Percent:    rate.PromoDiscountPercent,
			}, discount)
		}
	}

	blocks := make([]DiscountedBlock, len(base.Blocks))
	for i, b := range base.Blocks {
		blocks[i] = DiscountedBlock{PriceBlock: b, FinalAmount: Round2(amounts[i])}
	}
	trail := make([]AppliedDiscount, 0, len(applied))
	for _, p := range applied {
		d := p.d
		d.Amount = Round2(p.amount)
		blocks[d.BlockIndex].Discounts = append(blocks[d.BlockIndex].Discounts, d)
		trail = append(trail, d)
	}
	return summarize(base, blocks, trail, PricingEngineLegacy, gstBefore)
}
