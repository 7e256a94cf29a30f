package domain

import (
	"fmt"
	"strconv"
)

// DiscountRate is the membership and promo configuration that applies to one request.
type DiscountRate struct {
	MembershipFreeMinutes     int     `json:"membership_free_minutes"`
	MembershipDiscountPercent float64 `json:"membership_discount_percent"`
	PromoDiscountPercent      float64 `json:"promo_discount_percent"`
	PromoDiscountMinutes      int     `json:"promo_discount_minutes"`
	PromoCampaignName         string  `json:"promo_campaign_name,omitempty"`
}

func (d DiscountRate) IsZero() bool {
	return d.MembershipFreeMinutes <= 0 && d.MembershipDiscountPercent <= 0 && d.PromoDiscountPercent <= 0
}

// PromoWins reports whether the promo campaign replaces the membership percentage.
func (d DiscountRate) PromoWins() bool {
	if d.PromoDiscountPercent <= 0 {
		return false
	}
	return d.MembershipDiscountPercent <= 0 || d.PromoDiscountPercent > d.MembershipDiscountPercent
}

type DiscountKind string

const (
	DiscountMembershipFreeMinutes DiscountKind = "membership-free-minutes"
	DiscountPromoCampaign         DiscountKind = "promo-campaign"
	DiscountPromoCampaignMinutes  DiscountKind = "promo-campaign-minutes"
	DiscountMembershipPercentage  DiscountKind = "membership-percentage"
)

// AppliedDiscount is one entry of the discount audit trail.
type AppliedDiscount struct {
	Kind       DiscountKind `json:"kind"`
	Label      string       `json:"label"`
	BlockIndex int          `json:"block_index"`
	Minutes    int          `json:"minutes,omitempty"`
	Percent    float64      `json:"percent,omitempty"`
	Amount     float64      `json:"amount"`
}

type DiscountedBlock struct {
	PriceBlock
	FinalAmount    float64           `json:"final_amount"`
	FinalGstAmount float64           `json:"final_gst_amount"`
	Discounts      []AppliedDiscount `json:"discounts,omitempty"`
}

// DiscountResult is the final client price after discount stacking.
// Interpreter amounts are never discounted.
type DiscountResult struct {
	EngineVersion        PricingEngineVersion `json:"engine_version"`
	Blocks               []DiscountedBlock    `json:"blocks"`
	AuditTrail           []AppliedDiscount    `json:"audit_trail"`
	TotalFullAmount      float64              `json:"total_full_amount"`
	TotalAmount          float64              `json:"total_amount"`
	TotalGstAmount       float64              `json:"total_gst_amount"`
	TotalDiscountAmount  float64              `json:"total_discount_amount"`
	InterpreterAmount    float64              `json:"interpreter_amount"`
	InterpreterGstAmount float64              `json:"interpreter_gst_amount"`
}

// Labels returns the audit trail labels in application order.
func (r DiscountResult) Labels() []string {
	out := make([]string, 0, len(r.AuditTrail))
	for _, d := range r.AuditTrail {
		out = append(out, d.Label)
	}
	return out
}

func freeMinutesLabel(minutes int) string {
	return fmt.Sprintf("Membership Free Minutes (%dmin)", minutes)
}

func promoMinutesLabel(minutes int, percent float64) string {
	return fmt.Sprintf("Promo Campaign Minutes Discount (%dmin at %s%%)", minutes, formatPercent(percent))
}

func promoLabel(percent float64) string {
	return fmt.Sprintf("Promo Campaign Discount (%s%%)", formatPercent(percent))
}

func membershipLabel(percent float64) string {
	return fmt.Sprintf("Membership Discount (%s%%)", formatPercent(percent))
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// ApplyDiscounts stacks discounts onto a base price in a fixed order:
// membership free minutes, then the promo campaign when it beats the membership
// percentage, otherwise the membership percentage. Amounts are rounded per step
// and never drop below zero. The function is pure.
func ApplyDiscounts(base BaseCalculationResult, rate DiscountRate) DiscountResult {
	blocks := make([]DiscountedBlock, len(base.Blocks))
	for i, b := range base.Blocks {
		blocks[i] = DiscountedBlock{PriceBlock: b, FinalAmount: b.ClientAmount}
	}
	var trail []AppliedDiscount
	record := func(d AppliedDiscount) {
		blocks[d.BlockIndex].Discounts = append(blocks[d.BlockIndex].Discounts, d)
		trail = append(trail, d)
	}

	// Minutes of each block still billable after free minutes.
	billable := make([]int, len(blocks))
	for i, b := range blocks {
		billable[i] = b.Minutes
	}

	freeLeft := rate.MembershipFreeMinutes
	for i := range blocks {
		if freeLeft <= 0 {
			break
		}
		b := &blocks[i]
		if b.Minutes <= 0 {
			continue
		}
		used := min(freeLeft, b.Minutes)
		freeLeft -= used
		var discount float64
		if used == b.Minutes {
			discount = b.FinalAmount
		} else {
			discount = Round2(b.FinalAmount * float64(used) / float64(b.Minutes))
		}
		b.FinalAmount = Round2(clampZero(b.FinalAmount - discount))
		billable[i] = b.Minutes - used
		record(AppliedDiscount{
			Kind:       DiscountMembershipFreeMinutes,
			Label:      freeMinutesLabel(used),
			BlockIndex: i,
			Minutes:    used,
			Amount:     discount,
		})
	}

	if rate.PromoWins() {
		if rate.PromoDiscountMinutes > 0 {
			promoLeft := rate.PromoDiscountMinutes
			for i := range blocks {
				if promoLeft <= 0 {
					break
				}
				b := &blocks[i]
				if billable[i] <= 0 || b.FinalAmount <= 0 {
					continue
				}
				covered := min(promoLeft, billable[i])
				promoLeft -= covered
				discount := Round2(b.FinalAmount * float64(covered) / float64(billable[i]) * rate.PromoDiscountPercent / 100)
				b.FinalAmount = Round2(clampZero(b.FinalAmount - discount))
				record(AppliedDiscount{
					Kind:       DiscountPromoCampaignMinutes,
					Label:      promoMinutesLabel(covered, rate.PromoDiscountPercent),
					BlockIndex: i,
					Minutes:    covered,
					Percent:    rate.PromoDiscountPercent,
					Amount:     discount,
				})
			}
		} else {
			for i := range blocks {
				b := &blocks[i]
				if b.FinalAmount <= 0 {
					continue
				}
				discount := Round2(b.FinalAmount * rate.PromoDiscountPercent / 100)
				b.FinalAmount = Round2(clampZero(b.FinalAmount - discount))
				record(AppliedDiscount{
					Kind:       DiscountPromoCampaign,
					Label:      promoLabel(rate.PromoDiscountPercent),
					BlockIndex: i,
					Percent:    rate.PromoDiscountPercent,
					Amount:     discount,
				})
			}
		}
	} else if rate.MembershipDiscountPercent > 0 {
		for i := range blocks {
			b := &blocks[i]
			if b.FinalAmount <= 0 {
				continue
			}
			discount := Round2(b.FinalAmount * rate.MembershipDiscountPercent / 100)
			b.FinalAmount = Round2(clampZero(b.FinalAmount - discount))
			record(AppliedDiscount{
				Kind:       DiscountMembershipPercentage,
				Label:      membershipLabel(rate.MembershipDiscountPercent),
				BlockIndex: i,
				Percent:    rate.MembershipDiscountPercent,
				Amount:     discount,
			})
		}
	}

	return summarize(base, blocks, trail, PricingEngineCurrent, false)
}

// summarize totals discounted blocks. When gstBefore is set the GST is derived
// from the undiscounted GST in proportion to the discounted total.
func summarize(base BaseCalculationResult, blocks []DiscountedBlock, trail []AppliedDiscount, version PricingEngineVersion, gstBefore bool) DiscountResult {
	var total float64
	for i := range blocks {
		b := &blocks[i]
		if base.IsClientGstPayer {
			_, b.FinalGstAmount = SplitGST(b.FinalAmount)
		}
		total += b.FinalAmount
	}
	total = Round2(total)
	res := DiscountResult{
		EngineVersion:        version,
		Blocks:               blocks,
		AuditTrail:           trail,
		TotalFullAmount:      base.ClientTotal,
		TotalAmount:          total,
		TotalDiscountAmount:  Round2(clampZero(base.ClientTotal - total)),
		InterpreterAmount:    base.InterpreterTotal,
		InterpreterGstAmount: base.InterpreterGstTotal,
	}
	if res.AuditTrail == nil {
		res.AuditTrail = []AppliedDiscount{}
	}
	if base.IsClientGstPayer {
		switch {
		case gstBefore && base.ClientTotal > 0:
			res.TotalGstAmount = Round2(base.ClientGstTotal * total / base.ClientTotal)
		default:
			_, res.TotalGstAmount = SplitGST(total)
		}
	}
	return res
}
