package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/domain"
	"gorm.io/gorm"
)

// ReadModelRepository reads booking and account tables owned by other subsystems.
// It never writes to them.
type ReadModelRepository struct {
	db *gorm.DB
}

func (r *ReadModelRepository) GetAppointmentDetails(ctx context.Context, appointmentID uuid.UUID) (domain.AppointmentDetails, error) {
	db := r.db.WithContext(ctx)
	var appt appointmentModel
	if err := db.Where("appointment_id = ?", appointmentID).Take(&appt).Error; err != nil {
		return domain.AppointmentDetails{}, notFound(err, domain.ErrAppointmentNotFound, appointmentID)
	}
	var client clientModel
	if err := db.Where("client_id = ?", appt.ClientID).Take(&client).Error; err != nil {
		return domain.AppointmentDetails{}, fmt.Errorf("load client: %w", notFound(err, domain.ErrNotFound, appt.ClientID))
	}
	details := domain.AppointmentDetails{
		Appointment: toDomainAppointment(appt),
		Client: domain.Client{
			ID:               client.ClientID,
			Role:             domain.UserRole(client.Role),
			IsGstPayer:       client.IsGstPayer,
			CompanyID:        client.CompanyID,
			PaymentMethodRef: client.PaymentMethodRef,
		},
	}
	if appt.InterpreterID != nil {
		var interp interpreterModel
		if err := db.Where("interpreter_id = ?", *appt.InterpreterID).Take(&interp).Error; err != nil {
			return domain.AppointmentDetails{}, fmt.Errorf("load interpreter: %w", notFound(err, domain.ErrNotFound, *appt.InterpreterID))
		}
		details.Interpreter = &domain.Interpreter{
			ID:               interp.InterpreterID,
			Role:             domain.UserRole(interp.Role),
			IsGstPayer:       interp.IsGstPayer,
			CompanyID:        interp.CompanyID,
			PayoutAccountRef: interp.PayoutAccountRef,
		}
	}
	if client.CompanyID != nil {
		var company companyModel
		err := db.Where("company_id = ?", *client.CompanyID).Take(&company).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return domain.AppointmentDetails{}, fmt.Errorf("load company: %w", err)
		default:
			details.Company = toDomainCompany(company)
		}
	}
	return details, nil
}

// GetDiscountRate returns the discount row in force at the given time, or a zero rate.
func (r *ReadModelRepository) GetDiscountRate(ctx context.Context, clientID uuid.UUID, at time.Time) (domain.DiscountRate, error) {
	var row discountRateModel
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Where("valid_from <= ?", at).
		Where("valid_until IS NULL OR valid_until > ?", at).
		Order("valid_from DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DiscountRate{}, nil
	}
	if err != nil {
		return domain.DiscountRate{}, err
	}
	return domain.DiscountRate{
		MembershipFreeMinutes:     row.MembershipFreeMinutes,
		MembershipDiscountPercent: row.MembershipDiscountPercent,
		PromoDiscountPercent:      row.PromoDiscountPercent,
		PromoDiscountMinutes:      row.PromoDiscountMinutes,
		PromoCampaignName:         row.PromoCampaignName,
	}, nil
}
