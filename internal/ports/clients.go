package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/domain"
)

// AppointmentReader loads appointments from the booking subsystem's tables.
// It returns domain.ErrAppointmentNotFound when the id is unknown.
type AppointmentReader interface {
	GetAppointmentDetails(ctx context.Context, appointmentID uuid.UUID) (domain.AppointmentDetails, error)
}

// DiscountReader resolves the membership and promo discounts of a client at a point in time.
type DiscountReader interface {
	GetDiscountRate(ctx context.Context, clientID uuid.UUID, at time.Time) (domain.DiscountRate, error)
}

// GatewayRequest is shared by every gateway operation. Amounts are minor units.
type GatewayRequest struct {
	IdempotencyKey string
	AmountMinor    int64
	Currency       string
	// AccountRef is the customer payment method, company debit method or payout account.
	AccountRef  string
	ExternalID  string
	Description string
	Metadata    map[string]string
}

type GatewayResult struct {
	ExternalID string
	Status     string
}

// PaymentGateway is the external payment processor.
// Implementations must honour IdempotencyKey so retried jobs never double-charge.
type PaymentGateway interface {
	ChargeByGatewayDebit(ctx context.Context, req GatewayRequest) (GatewayResult, error)
	CreateAuthorization(ctx context.Context, req GatewayRequest) (GatewayResult, error)
	CaptureAuthorization(ctx context.Context, req GatewayRequest) (GatewayResult, error)
	CancelAuthorization(ctx context.Context, req GatewayRequest) (GatewayResult, error)
	TransferFunds(ctx context.Context, req GatewayRequest) (GatewayResult, error)
}
