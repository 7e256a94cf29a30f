package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/domain"
)

// LoadPaymentContextForAuthorization assembles the pre-authorization context.
// Wait-listed appointments get a minimal context without prices.
func (s *Service) LoadPaymentContextForAuthorization(ctx context.Context, appointmentID uuid.UUID, opts ContextOptions) (*AuthorizationContext, error) {
	details, err := s.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	now := s.nowFn()
	appt := details.Appointment

	pctx := &AuthorizationContext{
		Details:                 details,
		IsCorporate:             details.Client.Role.IsCorporate(),
		Operation:               domain.OperationAuthorization,
		AdditionalBlockDuration: opts.AdditionalBlockDuration,
		IsShortTimeSlot:         opts.IsShortTimeSlot,
	}
	if opts.AdditionalBlockDuration > 0 {
		pctx.Operation = domain.OperationAdditionalBlockAuthorization
	}
	start, duration := pricingWindow(appt, opts.AdditionalBlockDuration)

	threshold := s.cfg.WaitListThreshold
	if opts.IsShortTimeSlot {
		threshold = s.cfg.ShortSlotWaitListThreshold
	}
	bookingLead := appt.ScheduledStartTime.Sub(appt.CreatedAt)
	pctx.Timing = TimingFlags{
		IsTooLateToAuthorize:       start.Sub(now) < s.cfg.AuthorizationCutoff,
		BookedAtLeast24HoursBefore: bookingLead >= 24*time.Hour,
		BookedAtLeast6HoursBefore:  bookingLead >= 6*time.Hour,
		IsBeyondWaitListThreshold:  appt.ScheduledStartTime.Sub(now) > threshold,
	}

	if !pctx.IsCorporate && pctx.Operation == domain.OperationAuthorization && pctx.Timing.IsBeyondWaitListThreshold {
		pctx.IsWaitListRedirect = true
		return pctx, nil
	}

	if opts.Prices != nil {
		prices := *opts.Prices
		if prices.WindowStart.IsZero() {
			prices.WindowStart = start
		}
		pctx.Prices = &prices
	} else {
		prices, err := s.QuotePrice(ctx, details, start, duration)
		if err != nil {
			return nil, err
		}
		pctx.Prices = &prices
	}

	if pctx.IsCorporate && details.Company != nil && details.Company.FundingMode == domain.FundingDeposit {
		assessment := domain.AssessDeposit(details.Company.DepositBalance, pctx.Prices.TotalAmount, details.Company.DepositDefaultCharge)
		pctx.Deposit = &assessment
	}

	payments, err := s.payments.ListByAppointment(ctx, appointmentID, domain.DirectionIncoming)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	pctx.ExistingPayment = latestForWindow(payments, pctx.Operation, start)
	return pctx, nil
}

// SelectPreAuthorizationStrategy picks the pre-authorization strategy and
// records the reason when the context cannot proceed.
func (s *Service) SelectPreAuthorizationStrategy(pctx *AuthorizationContext) domain.StrategyName {
	if pctx.IsWaitListRedirect {
		return domain.StrategyWaitListRedirect
	}
	if reason := preAuthorizationBlocker(pctx); reason != "" {
		pctx.ValidationReason = reason
		return domain.StrategyValidationFailed
	}
	if pctx.IsCorporate {
		if pctx.Details.Company.FundingMode == domain.FundingPostPayment {
			return domain.StrategyCorporatePostPayment
		}
		return domain.StrategyCorporateDepositCharge
	}
	return domain.StrategyIndividualGatewayAuth
}

func preAuthorizationBlocker(pctx *AuthorizationContext) string {
	appt := pctx.Details.Appointment
	if appt.Status == domain.AppointmentCancelled || appt.Status == domain.AppointmentCompleted {
		return fmt.Sprintf("appointment is %s", appt.Status)
	}
	if pctx.Prices == nil {
		return "prices were not computed"
	}
	if err := pctx.Prices.Validate(); err != nil {
		return err.Error()
	}
	if p := pctx.ExistingPayment; p != nil {
		if domain.Round2(p.TotalAmount) != domain.Round2(pctx.Prices.TotalAmount) {
			return fmt.Sprintf("existing payment amount %.2f differs from price %.2f", p.TotalAmount, pctx.Prices.TotalAmount)
		}
	}
	if pctx.IsCorporate {
		if pctx.Details.Company == nil {
			return "corporate client has no company"
		}
		return ""
	}
	if pctx.Details.Client.PaymentMethodRef == "" && pctx.Prices.TotalAmount > 0 {
		return "client has no payment method"
	}
	return ""
}

// latestForWindow returns the newest live payment of an operation for the
// billed window starting at windowStart.
func latestForWindow(payments []*domain.Payment, op domain.PaymentOperation, windowStart time.Time) *domain.Payment {
	for i := len(payments) - 1; i >= 0; i-- {
		p := payments[i]
		if p.Operation != op || !p.Prices.WindowStart.Equal(windowStart) {
			continue
		}
		if p.Status == domain.PaymentCancelled || p.Status == domain.PaymentFailed {
			continue
		}
		return p
	}
	return nil
}
