package postgres

import (
	"context"

	"github.com/viralforge/appointment-payments/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Payments           ports.PaymentRepository
	WaitList           ports.WaitListRepository
	Companies          ports.CompanyRepository
	DepositCharges     ports.DepositChargeRepository
	ValidationFailures ports.ValidationFailureRepository
	Rates              ports.RateRepository
	Outbox             ports.OutboxRepository
	ReadModel          *ReadModelRepository
	Tx                 ports.TxManager
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Payments:           &paymentRepository{db: db},
		WaitList:           &waitListRepository{db: db},
		Companies:          &companyRepository{db: db},
		DepositCharges:     &depositChargeRepository{db: db},
		ValidationFailures: &validationFailureRepository{db: db},
		Rates:              &rateRepository{db: db},
		Outbox:             &outboxRepository{db: db},
		ReadModel:          &ReadModelRepository{db: db},
		Tx:                 &txManager{db: db},
	}
}

func txRepositories(tx *gorm.DB) ports.TxRepositories {
	return ports.TxRepositories{
		Payments:           &paymentRepository{db: tx},
		WaitList:           &waitListRepository{db: tx},
		Companies:          &companyRepository{db: tx},
		DepositCharges:     &depositChargeRepository{db: tx},
		ValidationFailures: &validationFailureRepository{db: tx},
	}
}

type txManager struct {
	db *gorm.DB
}

// WithinTransaction binds a fresh repository set to one transaction.
func (m *txManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos ports.TxRepositories) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, txRepositories(tx))
	})
}
