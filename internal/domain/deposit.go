package domain

// Deposit thresholds as fractions of the company's default top-up charge.
const (
	DepositCriticalThreshold = 0.10
	DepositLowThreshold      = 0.15
)

// DepositAssessment describes a company balance after reserving a price.
type DepositAssessment struct {
	BalanceAfter        float64 `json:"balance_after"`
	InsufficientFunds   bool    `json:"insufficient_funds"`
	BelowTenPercent     bool    `json:"below_ten_percent"`
	BelowFifteenPercent bool    `json:"below_fifteen_percent"`
}

// AssessDeposit evaluates a deposit balance against a price and the top-up thresholds.
func AssessDeposit(balance, price, defaultCharge float64) DepositAssessment {
	after := Round2(balance - price)
	a := DepositAssessment{
		BalanceAfter:      after,
		InsufficientFunds: balance < price,
	}
	if defaultCharge > 0 {
		a.BelowTenPercent = after < defaultCharge*DepositCriticalThreshold
		a.BelowFifteenPercent = after < defaultCharge*DepositLowThreshold
	} else {
		a.BelowTenPercent = a.InsufficientFunds
		a.BelowFifteenPercent = a.InsufficientFunds
	}
	return a
}

// NeedsTopUp reports whether a deposit charge request should be queued.
func (a DepositAssessment) NeedsTopUp() bool {
	return a.InsufficientFunds || a.BelowFifteenPercent
}

// TopUpAmount is the default charge plus any shortfall below zero.
func (a DepositAssessment) TopUpAmount(defaultCharge float64) float64 {
	amount := defaultCharge
	if a.BalanceAfter < 0 {
		amount += -a.BalanceAfter
	}
	return Round2(amount)
}
