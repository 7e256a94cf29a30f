package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/domain"
	"gorm.io/gorm"
)

func toPaymentModel(p *domain.Payment) (paymentModel, []paymentItemModel, error) {
	breakdown, err := json.Marshal(p.Prices)
	if err != nil {
		return paymentModel{}, nil, fmt.Errorf("marshal payment breakdown: %w", err)
	}
	row := paymentModel{
		PaymentID:            p.ID,
		AppointmentID:        p.AppointmentID,
		CompanyID:            p.CompanyID,
		Direction:            string(p.Direction),
		Operation:            string(p.Operation),
		Status:               string(p.Status),
		TotalAmount:          p.TotalAmount,
		TotalGstAmount:       p.TotalGstAmount,
		TotalFullAmount:      p.TotalFullAmount,
		Currency:             p.Currency,
		PricingEngineVersion: string(p.PricingEngineVersion),
		WindowStart:          p.Prices.WindowStart.UTC(),
		Breakdown:            breakdown,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
	items := make([]paymentItemModel, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, paymentItemModel{
			ItemID:     it.ID,
			PaymentID:  p.ID,
			Kind:       string(it.Kind),
			ExternalID: it.ExternalID,
			Amount:     it.Amount,
			GstAmount:  it.GstAmount,
			Currency:   it.Currency,
			Status:     string(it.Status),
			Note:       it.Note,
			CreatedAt:  it.CreatedAt,
			UpdatedAt:  it.UpdatedAt,
		})
	}
	return row, items, nil
}

func toDomainPayment(row paymentModel, items []paymentItemModel) (*domain.Payment, error) {
	var prices domain.PaymentPrices
	if len(row.Breakdown) > 0 {
		if err := json.Unmarshal(row.Breakdown, &prices); err != nil {
			return nil, fmt.Errorf("decode payment %s breakdown: %w", row.PaymentID, err)
		}
	}
	prices.WindowStart = row.WindowStart.UTC()
	p := &domain.Payment{
		ID:                   row.PaymentID,
		AppointmentID:        row.AppointmentID,
		CompanyID:            row.CompanyID,
		Direction:            domain.PaymentDirection(row.Direction),
		Operation:            domain.PaymentOperation(row.Operation),
		Status:               domain.PaymentStatus(row.Status),
		TotalAmount:          row.TotalAmount,
		TotalGstAmount:       row.TotalGstAmount,
		TotalFullAmount:      row.TotalFullAmount,
		Currency:             row.Currency,
		PricingEngineVersion: domain.PricingEngineVersion(row.PricingEngineVersion),
		Prices:               prices,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
		Items:                make([]domain.PaymentItem, 0, len(items)),
	}
	for _, it := range items {
		p.Items = append(p.Items, domain.PaymentItem{
			ID:         it.ItemID,
			PaymentID:  it.PaymentID,
			Kind:       domain.PaymentItemKind(it.Kind),
			ExternalID: it.ExternalID,
			Amount:     it.Amount,
			GstAmount:  it.GstAmount,
			Currency:   it.Currency,
			Status:     domain.PaymentItemStatus(it.Status),
			Note:       it.Note,
			CreatedAt:  it.CreatedAt,
			UpdatedAt:  it.UpdatedAt,
		})
	}
	return p, nil
}

func toRateModel(r domain.Rate) rateModel {
	return rateModel{
		RateID:                             r.ID,
		InterpreterType:                    string(r.InterpreterType),
		SchedulingType:                     string(r.SchedulingType),
		CommunicationType:                  string(r.CommunicationType),
		InterpretingType:                   string(r.InterpretingType),
		Qualifier:                          string(r.Qualifier),
		Sequence:                           string(r.Sequence),
		DetailsTime:                        r.DetailsTime,
		PaidByTakerGeneralWithGst:          r.PaidByTakerGeneralWithGst,
		PaidByTakerGeneralWithoutGst:       r.PaidByTakerGeneralWithoutGst,
		PaidByTakerSpecialWithGst:          r.PaidByTakerSpecialWithGst,
		PaidByTakerSpecialWithoutGst:       r.PaidByTakerSpecialWithoutGst,
		PaidToInterpreterGeneralWithGst:    r.PaidToInterpreterGeneralWithGst,
		PaidToInterpreterGeneralWithoutGst: r.PaidToInterpreterGeneralWithoutGst,
		PaidToInterpreterSpecialWithGst:    r.PaidToInterpreterSpecialWithGst,
		PaidToInterpreterSpecialWithoutGst: r.PaidToInterpreterSpecialWithoutGst,
	}
}

func toDomainRate(row rateModel) domain.Rate {
	return domain.Rate{
		ID:                                 row.RateID,
		InterpreterType:                    domain.InterpreterType(row.InterpreterType),
		SchedulingType:                     domain.SchedulingType(row.SchedulingType),
		CommunicationType:                  domain.CommunicationType(row.CommunicationType),
		InterpretingType:                   domain.InterpretingType(row.InterpretingType),
		Qualifier:                          domain.RateQualifier(row.Qualifier),
		Sequence:                           domain.RateSequence(row.Sequence),
		DetailsTime:                        row.DetailsTime,
		PaidByTakerGeneralWithGst:          row.PaidByTakerGeneralWithGst,
		PaidByTakerGeneralWithoutGst:       row.PaidByTakerGeneralWithoutGst,
		PaidByTakerSpecialWithGst:          row.PaidByTakerSpecialWithGst,
		PaidByTakerSpecialWithoutGst:       row.PaidByTakerSpecialWithoutGst,
		PaidToInterpreterGeneralWithGst:    row.PaidToInterpreterGeneralWithGst,
		PaidToInterpreterGeneralWithoutGst: row.PaidToInterpreterGeneralWithoutGst,
		PaidToInterpreterSpecialWithGst:    row.PaidToInterpreterSpecialWithGst,
		PaidToInterpreterSpecialWithoutGst: row.PaidToInterpreterSpecialWithoutGst,
	}
}

func toDomainCompany(row companyModel) *domain.Company {
	return &domain.Company{
		ID:                   row.CompanyID,
		Name:                 row.Name,
		FundingMode:          domain.CompanyFundingMode(row.FundingMode),
		DepositBalance:       row.DepositBalance,
		DepositDefaultCharge: row.DepositDefaultCharge,
		IsGstPayer:           row.IsGstPayer,
		PaymentMethodRef:     row.PaymentMethodRef,
	}
}

func toDomainAppointment(row appointmentModel) domain.Appointment {
	return domain.Appointment{
		ID:                 row.AppointmentID,
		ClientID:           row.ClientID,
		InterpreterID:      row.InterpreterID,
		ScheduledStartTime: row.ScheduledStartTime.UTC(),
		DurationMinutes:    row.DurationMinutes,
		CommunicationType:  domain.CommunicationType(row.CommunicationType),
		SchedulingType:     domain.SchedulingType(row.SchedulingType),
		InterpretingType:   domain.InterpretingType(row.InterpretingType),
		InterpreterType:    domain.InterpreterType(row.InterpreterType),
		Topic:              domain.Topic(row.Topic),
		Status:             domain.AppointmentStatus(row.Status),
		CreatedAt:          row.CreatedAt.UTC(),
	}
}

// notFound maps gorm's missing-row error to the given domain error.
func notFound(err error, target error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", target, id)
	}
	return err
}
