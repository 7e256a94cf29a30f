package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/domain"
)

// QuotePrice prices a slice of an appointment with the engine its creation date selects.
func (s *Service) QuotePrice(ctx context.Context, details domain.AppointmentDetails, start time.Time, durationMinutes int) (domain.PaymentPrices, error) {
	appt := details.Appointment
	rates, err := s.FetchRates(ctx, appt.RateTuple())
	if err != nil {
		return domain.PaymentPrices{}, err
	}
	base, err := domain.ComputeBasePrice(domain.PriceInput{
		Rates:                 rates,
		StartTime:             start,
		DurationMinutes:       durationMinutes,
		Topic:                 appt.Topic,
		InterpreterType:       appt.InterpreterType,
		IsClientGstPayer:      clientPaysGst(details),
		IsInterpreterGstPayer: details.Interpreter != nil && details.Interpreter.IsGstPayer,
		Hours:                 s.cfg.BusinessHours,
	})
	if err != nil {
		return domain.PaymentPrices{}, err
	}

	discountRate := domain.DiscountRate{}
	if s.discounts != nil {
		discountRate, err = s.discounts.GetDiscountRate(ctx, details.Client.ID, s.nowFn())
		if err != nil {
			return domain.PaymentPrices{}, fmt.Errorf("load discount rate: %w", err)
		}
	}

	var result domain.DiscountResult
	switch domain.SelectPricingEngine(appt.CreatedAt, s.cfg.PricingCutover) {
	case domain.PricingEngineLegacy:
		result = domain.ApplyLegacyDiscounts(base, discountRate, s.cfg.LegacyGstCalculatedBefore)
	default:
		result = domain.ApplyDiscounts(base, discountRate)
	}
	return domain.PricesFromDiscount(result, s.cfg.Currency, start, durationMinutes), nil
}

// QuoteAppointment prices a whole appointment, or an extension when
// additionalBlockDuration is positive.
func (s *Service) QuoteAppointment(ctx context.Context, appointmentID uuid.UUID, additionalBlockDuration int) (domain.PaymentPrices, error) {
	details, err := s.loadAppointment(ctx, appointmentID)
	if err != nil {
		return domain.PaymentPrices{}, err
	}
	start, duration := pricingWindow(details.Appointment, additionalBlockDuration)
	return s.QuotePrice(ctx, details, start, duration)
}

func (s *Service) loadAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.AppointmentDetails, error) {
	details, err := s.appointments.GetAppointmentDetails(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrAppointmentNotFound) {
			return domain.AppointmentDetails{}, fmt.Errorf("%w: %s", domain.ErrAppointmentNotFound, appointmentID)
		}
		return domain.AppointmentDetails{}, err
	}
	return details, nil
}

// pricingWindow returns the start and length of the billed slice.
func pricingWindow(appt domain.Appointment, additionalBlockDuration int) (time.Time, int) {
	if additionalBlockDuration > 0 {
		return appt.ScheduledEndTime(), additionalBlockDuration
	}
	return appt.ScheduledStartTime, appt.DurationMinutes
}

// clientPaysGst uses the company registration for corporate bookings.
func clientPaysGst(details domain.AppointmentDetails) bool {
	if details.Client.Role.IsCorporate() && details.Company != nil {
		return details.Company.IsGstPayer
	}
	return details.Client.IsGstPayer
}
