package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type paymentRepository struct {
	db *gorm.DB
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	row, items, err := toPaymentModel(payment)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("insert payment items: %w", err)
		}
		return nil
	})
}

func (r *paymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	row, items, err := toPaymentModel(payment)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&paymentModel{}).
			Where("payment_id = ?", row.PaymentID).
			Select("*").
			Omit("payment_id", "created_at").
			Updates(&row)
		if res.Error != nil {
			return fmt.Errorf("update payment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, row.PaymentID)
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"external_id", "amount", "gst_amount", "status", "note", "updated_at",
			}),
		}).Create(&items).Error
	})
}

func (r *paymentRepository) GetByID(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	var row paymentModel
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Take(&row).Error; err != nil {
		return nil, notFound(err, domain.ErrPaymentNotFound, paymentID)
	}
	out, err := r.withItems(ctx, []paymentModel{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (r *paymentRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID, direction domain.PaymentDirection) ([]*domain.Payment, error) {
	return r.list(ctx, r.db.WithContext(ctx), appointmentID, direction)
}

func (r *paymentRepository) LockByAppointment(ctx context.Context, appointmentID uuid.UUID, direction domain.PaymentDirection) ([]*domain.Payment, error) {
	q := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	return r.list(ctx, q, appointmentID, direction)
}

func (r *paymentRepository) list(ctx context.Context, q *gorm.DB, appointmentID uuid.UUID, direction domain.PaymentDirection) ([]*domain.Payment, error) {
	var rows []paymentModel
	if err := q.Where("appointment_id = ?", appointmentID).
		Where("direction = ?", string(direction)).
		Order("created_at ASC").
		Order("payment_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withItems(ctx, rows)
}

// withItems loads the items of every row in one query.
func (r *paymentRepository) withItems(ctx context.Context, rows []paymentModel) ([]*domain.Payment, error) {
	out := make([]*domain.Payment, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.PaymentID)
	}
	var items []paymentItemModel
	if err := r.db.WithContext(ctx).
		Where("payment_id IN ?", ids).
		Order("created_at ASC").
		Order("item_id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	byPayment := make(map[uuid.UUID][]paymentItemModel, len(rows))
	for _, it := range items {
		byPayment[it.PaymentID] = append(byPayment[it.PaymentID], it)
	}
	for _, row := range rows {
		p, err := toDomainPayment(row, byPayment[row.PaymentID])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
