package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Adapters map it to 404 and the job worker dead-letters it without retry.
	ErrNotFound = errors.New("resource not found")
	// ErrAppointmentNotFound is returned when the appointment read model has no row for the id.
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrPaymentNotFound is returned when a stage expects a payment that was never created.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrRatesNotFound signals that the rate table is missing rows for a billing tuple.
	// It is a configuration problem, so retrying the job cannot help.
	ErrRatesNotFound = errors.New("rates not found")
	// ErrValidationFailed marks a payment context that cannot proceed.
	// Stages route it to the validation-failed strategy, which records it as data.
	ErrValidationFailed = errors.New("payment validation failed")
	// ErrGatewayFailure wraps any error returned by the payment gateway client.
	ErrGatewayFailure = errors.New("payment gateway failure")
	// ErrInsufficientFunds is informational: a company deposit cannot cover the price.
	// It never fails a stage; it triggers a deposit charge request instead.
	ErrInsufficientFunds     = errors.New("insufficient deposit funds")
	ErrSettlementInFlight    = errors.New("payment has an unfinished item")
	ErrUnknownStrategy       = errors.New("unknown strategy")
	ErrInvalidInput          = errors.New("invalid input")
	ErrConflict              = errors.New("conflict")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// IsRetryable reports whether the queue layer should run the job again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAppointmentNotFound),
		errors.Is(err, ErrPaymentNotFound),
		errors.Is(err, ErrRatesNotFound),
		errors.Is(err, ErrValidationFailed),
		errors.Is(err, ErrUnknownStrategy),
		errors.Is(err, ErrInvalidInput):
		return false
	}
	return true
}
