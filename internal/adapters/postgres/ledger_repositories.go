package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type waitListRepository struct {
	db *gorm.DB
}

func (r *waitListRepository) Upsert(ctx context.Context, entry domain.WaitListEntry) error {
	row := waitListModel{
		AppointmentID:   entry.AppointmentID,
		Attempts:        entry.Attempts,
		LastAttemptAt:   entry.LastAttemptAt,
		IsShortTimeSlot: entry.IsShortTimeSlot,
		CreatedAt:       entry.CreatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "appointment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_short_time_slot"}),
	}).Create(&row).Error
}

func (r *waitListRepository) Get(ctx context.Context, appointmentID uuid.UUID) (*domain.WaitListEntry, error) {
	var row waitListModel
	err := r.db.WithContext(ctx).Where("appointment_id = ?", appointmentID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry := toDomainWaitListEntry(row)
	return &entry, nil
}

func (r *waitListRepository) Delete(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("appointment_id = ?", appointmentID).Delete(&waitListModel{})
	return res.RowsAffected > 0, res.Error
}

func (r *waitListRepository) ListOldest(ctx context.Context, limit int) ([]domain.WaitListEntry, error) {
	var rows []waitListModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.WaitListEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainWaitListEntry(row))
	}
	return out, nil
}

func (r *waitListRepository) RecordAttempt(ctx context.Context, appointmentID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&waitListModel{}).
		Where("appointment_id = ?", appointmentID).
		Updates(map[string]any{
			"attempts":        gorm.Expr("attempts + 1"),
			"last_attempt_at": at,
		}).Error
}

func toDomainWaitListEntry(row waitListModel) domain.WaitListEntry {
	return domain.WaitListEntry{
		AppointmentID:   row.AppointmentID,
		Attempts:        row.Attempts,
		LastAttemptAt:   row.LastAttemptAt,
		IsShortTimeSlot: row.IsShortTimeSlot,
		CreatedAt:       row.CreatedAt,
	}
}

type companyRepository struct {
	db *gorm.DB
}

func (r *companyRepository) GetForUpdate(ctx context.Context, companyID uuid.UUID) (*domain.Company, error) {
	var row companyModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ?", companyID).
		Take(&row).Error; err != nil {
		return nil, notFound(err, domain.ErrNotFound, companyID)
	}
	return toDomainCompany(row), nil
}

func (r *companyRepository) AdjustDepositBalance(ctx context.Context, companyID uuid.UUID, delta float64) (float64, error) {
	res := r.db.WithContext(ctx).
		Model(&companyModel{}).
		Where("company_id = ?", companyID).
		Update("deposit_balance", gorm.Expr("deposit_balance + ?", domain.Round2(delta)))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("%w: company %s", domain.ErrNotFound, companyID)
	}
	var row companyModel
	if err := r.db.WithContext(ctx).Select("deposit_balance").Where("company_id = ?", companyID).Take(&row).Error; err != nil {
		return 0, err
	}
	return domain.Round2(row.DepositBalance), nil
}

type depositChargeRepository struct {
	db *gorm.DB
}

func (r *depositChargeRepository) GetPending(ctx context.Context, companyID uuid.UUID) (*domain.CompanyDepositCharge, error) {
	var row depositChargeModel
	err := r.db.WithContext(ctx).Where("company_id = ?", companyID).Order("created_at ASC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.CompanyDepositCharge{
		ID:        row.ChargeID,
		CompanyID: row.CompanyID,
		Amount:    row.Amount,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (r *depositChargeRepository) Create(ctx context.Context, charge domain.CompanyDepositCharge) error {
	row := depositChargeModel{
		ChargeID:  charge.ID,
		CompanyID: charge.CompanyID,
		Amount:    domain.Round2(charge.Amount),
		CreatedAt: charge.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: company %s already has a pending deposit charge", domain.ErrConflict, charge.CompanyID)
		}
		return err
	}
	return nil
}

func (r *depositChargeRepository) Delete(ctx context.Context, chargeID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("charge_id = ?", chargeID).Delete(&depositChargeModel{})
	return res.RowsAffected > 0, res.Error
}

type validationFailureRepository struct {
	db *gorm.DB
}

func (r *validationFailureRepository) Record(ctx context.Context, failure domain.ValidationFailure) error {
	details, err := json.Marshal(failure.Details)
	if err != nil {
		return fmt.Errorf("marshal validation details: %w", err)
	}
	row := validationFailureModel{
		FailureID: failure.ID,
		Stage:     string(failure.Stage),
		Reason:    failure.Reason,
		Details:   details,
		CreatedAt: failure.CreatedAt,
	}
	if failure.AppointmentID != uuid.Nil {
		id := failure.AppointmentID
		row.AppointmentID = &id
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

type rateRepository struct {
	db *gorm.DB
}

func (r *rateRepository) ListByTuple(ctx context.Context, tuple domain.RateTuple) ([]domain.Rate, error) {
	var rows []rateModel
	if err := r.db.WithContext(ctx).
		Where("interpreter_type = ?", string(tuple.InterpreterType)).
		Where("scheduling_type = ?", string(tuple.SchedulingType)).
		Where("communication_type = ?", string(tuple.CommunicationType)).
		Where("interpreting_type = ?", string(tuple.InterpretingType)).
		Order("qualifier ASC").
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Rate, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainRate(row))
	}
	return out, nil
}

// Upsert replaces the amounts of the rate slot identified by tuple, qualifier and sequence.
func (r *rateRepository) Upsert(ctx context.Context, rate domain.Rate) error {
	if rate.ID == uuid.Nil {
		rate.ID = uuid.New()
	}
	row := toRateModel(rate)
	row.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "interpreter_type"}, {Name: "scheduling_type"}, {Name: "communication_type"},
			{Name: "interpreting_type"}, {Name: "qualifier"}, {Name: "sequence"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"details_time",
			"paid_by_taker_general_with_gst", "paid_by_taker_general_without_gst",
			"paid_by_taker_special_with_gst", "paid_by_taker_special_without_gst",
			"paid_to_interpreter_general_with_gst", "paid_to_interpreter_general_without_gst",
			"paid_to_interpreter_special_with_gst", "paid_to_interpreter_special_without_gst",
			"updated_at",
		}),
	}).Create(&row).Error
}
