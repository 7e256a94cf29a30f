package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/domain"
)

// PaymentRepository persists payments together with their items.
// List methods return payments oldest first and an empty slice when none match.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	// Save updates the payment row and upserts every item.
	Save(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID, direction domain.PaymentDirection) ([]*domain.Payment, error)
	// LockByAppointment is ListByAppointment with row locks held until the transaction ends.
	LockByAppointment(ctx context.Context, appointmentID uuid.UUID, direction domain.PaymentDirection) ([]*domain.Payment, error)
}

// WaitListRepository stores far-future appointments awaiting authorization.
type WaitListRepository interface {
	Upsert(ctx context.Context, entry domain.WaitListEntry) error
	Get(ctx context.Context, appointmentID uuid.UUID) (*domain.WaitListEntry, error)
	// Delete reports whether this call removed the entry.
	Delete(ctx context.Context, appointmentID uuid.UUID) (bool, error)
	ListOldest(ctx context.Context, limit int) ([]domain.WaitListEntry, error)
	RecordAttempt(ctx context.Context, appointmentID uuid.UUID, at time.Time) error
}

// CompanyRepository exposes the deposit balance of corporate clients.
type CompanyRepository interface {
	GetForUpdate(ctx context.Context, companyID uuid.UUID) (*domain.Company, error)
	// AdjustDepositBalance adds delta and returns the new balance.
	AdjustDepositBalance(ctx context.Context, companyID uuid.UUID, delta float64) (float64, error)
}

type DepositChargeRepository interface {
	GetPending(ctx context.Context, companyID uuid.UUID) (*domain.CompanyDepositCharge, error)
	Create(ctx context.Context, charge domain.CompanyDepositCharge) error
	// Delete reports whether this call removed the charge.
	Delete(ctx context.Context, chargeID uuid.UUID) (bool, error)
}

type ValidationFailureRepository interface {
	Record(ctx context.Context, failure domain.ValidationFailure) error
}

// RateRepository is the durable source of the rate table.
type RateRepository interface {
	ListByTuple(ctx context.Context, tuple domain.RateTuple) ([]domain.Rate, error)
	Upsert(ctx context.Context, rate domain.Rate) error
}

// TxRepositories is the set of repositories bound to one database transaction.
type TxRepositories struct {
	Payments           PaymentRepository
	WaitList           WaitListRepository
	Companies          CompanyRepository
	DepositCharges     DepositChargeRepository
	ValidationFailures ValidationFailureRepository
}

// TxManager runs fn inside a transaction. A non-nil error from fn rolls back.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}

// OutboxEvent is a durable job or event waiting to be published.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord is an outbox row as seen by the publisher loop.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
