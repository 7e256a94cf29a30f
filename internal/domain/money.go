package domain

import "math"

// GSTCoefficient converts a GST-inclusive amount into its pre-tax part by division.
const GSTCoefficient = 1.1

const DefaultCurrency = "AUD"

// Round2 rounds half away from zero to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SplitGST derives the pre-tax amount and GST component of a GST-inclusive amount.
// The GST component is the remainder, so pretax+gst always equals the rounded amount.
func SplitGST(amount float64) (pretax float64, gst float64) {
	amount = Round2(amount)
	pretax = Round2(amount / GSTCoefficient)
	gst = Round2(amount - pretax)
	return pretax, gst
}

// ToMinorUnits converts a dollar amount to integer cents for the gateway.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
