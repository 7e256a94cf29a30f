package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PaymentDirection string

const (
	DirectionIncoming PaymentDirection = "incoming"
	DirectionOutgoing PaymentDirection = "outgoing"
)

type PaymentOperation string

const (
	OperationAuthorization                PaymentOperation = "authorization"
	OperationAdditionalBlockAuthorization PaymentOperation = "additional-block-authorization"
	OperationTransfer                     PaymentOperation = "transfer"
)

type PaymentStatus string

const (
	PaymentPending          PaymentStatus = "pending"
	PaymentAuthorized       PaymentStatus = "authorized"
	PaymentCaptured         PaymentStatus = "captured"
	PaymentCancelled        PaymentStatus = "cancelled"
	PaymentTransferred      PaymentStatus = "transferred"
	PaymentWaitingForPayout PaymentStatus = "waiting-for-payout"
	PaymentFailed           PaymentStatus = "failed"
)

// IsOpen reports an incoming payment that still holds or expects funds.
func (s PaymentStatus) IsOpen() bool {
	return s == PaymentPending || s == PaymentAuthorized
}

type PaymentItemKind string

const (
	ItemAuthorization      PaymentItemKind = "authorization"
	ItemCapture            PaymentItemKind = "capture"
	ItemCancellation       PaymentItemKind = "cancellation"
	ItemDepositReservation PaymentItemKind = "deposit-reservation"
	ItemDepositRelease     PaymentItemKind = "deposit-release"
	ItemCommission         PaymentItemKind = "commission"
	ItemTransfer           PaymentItemKind = "transfer"
)

type PaymentItemStatus string

const (
	ItemPending   PaymentItemStatus = "pending"
	ItemSucceeded PaymentItemStatus = "succeeded"
	ItemFailed    PaymentItemStatus = "failed"
	ItemCancelled PaymentItemStatus = "cancelled"
)

// IsFinished reports item states that no longer wait on the gateway.
func (s PaymentItemStatus) IsFinished() bool {
	return s != ItemPending
}

// PaymentItem is one gateway or ledger movement under a payment.
type PaymentItem struct {
	ID         uuid.UUID
	PaymentID  uuid.UUID
	Kind       PaymentItemKind
	ExternalID string
	Amount     float64
	GstAmount  float64
	Currency   string
	Status     PaymentItemStatus
	Note       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PaymentPrices is the price snapshot persisted with a payment.
type PaymentPrices struct {
	EngineVersion        PricingEngineVersion `json:"engine_version"`
	Currency             string               `json:"currency"`
	WindowStart          time.Time            `json:"window_start"`
	DurationMinutes      int                  `json:"duration_minutes"`
	TotalFullAmount      float64              `json:"total_full_amount"`
	TotalAmount          float64              `json:"total_amount"`
	TotalGstAmount       float64              `json:"total_gst_amount"`
	InterpreterAmount    float64              `json:"interpreter_amount"`
	InterpreterGstAmount float64              `json:"interpreter_gst_amount"`
	Blocks               []DiscountedBlock    `json:"blocks,omitempty"`
	AuditTrail           []AppliedDiscount    `json:"audit_trail,omitempty"`
}

// PricesFromDiscount snapshots a discount result for the billed window.
func PricesFromDiscount(r DiscountResult, currency string, windowStart time.Time, durationMinutes int) PaymentPrices {
	return PaymentPrices{
		EngineVersion:        r.EngineVersion,
		Currency:             currency,
		WindowStart:          windowStart,
		DurationMinutes:      durationMinutes,
		TotalFullAmount:      r.TotalFullAmount,
		TotalAmount:          r.TotalAmount,
		TotalGstAmount:       r.TotalGstAmount,
		InterpreterAmount:    r.InterpreterAmount,
		InterpreterGstAmount: r.InterpreterGstAmount,
		Blocks:               r.Blocks,
		AuditTrail:           r.AuditTrail,
	}
}

func (p PaymentPrices) Validate() error {
	if p.TotalAmount < 0 || p.TotalFullAmount < 0 {
		return fmt.Errorf("%w: negative price", ErrValidationFailed)
	}
	if p.TotalAmount > p.TotalFullAmount {
		return fmt.Errorf("%w: total %.2f exceeds full amount %.2f", ErrValidationFailed, p.TotalAmount, p.TotalFullAmount)
	}
	if p.TotalGstAmount > p.TotalAmount {
		return fmt.Errorf("%w: gst exceeds total", ErrValidationFailed)
	}
	return nil
}

// CommissionAmount is the platform share of the client price.
func (p PaymentPrices) CommissionAmount() float64 {
	return Round2(clampZero(p.TotalAmount - p.InterpreterAmount))
}

// Payment is the aggregate of gateway movements for one appointment and direction.
type Payment struct {
	ID                   uuid.UUID
	AppointmentID        uuid.UUID
	CompanyID            *uuid.UUID
	Direction            PaymentDirection
	Operation            PaymentOperation
	Status               PaymentStatus
	TotalAmount          float64
	TotalGstAmount       float64
	TotalFullAmount      float64
	Currency             string
	PricingEngineVersion PricingEngineVersion
	Prices               PaymentPrices
	Items                []PaymentItem
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewPayment builds a pending payment from a price snapshot.
func NewPayment(appointmentID uuid.UUID, companyID *uuid.UUID, direction PaymentDirection, op PaymentOperation, prices PaymentPrices, now time.Time) *Payment {
	p := &Payment{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		CompanyID:     companyID,
		Direction:     direction,
		Operation:     op,
		Status:        PaymentPending,
		CreatedAt:     now,
	}
	p.Reprice(prices, now)
	return p
}

// Reprice replaces the price snapshot and every total derived from it.
func (p *Payment) Reprice(prices PaymentPrices, now time.Time) {
	currency := prices.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	p.TotalAmount = prices.TotalAmount
	p.TotalGstAmount = prices.TotalGstAmount
	p.TotalFullAmount = prices.TotalFullAmount
	p.Currency = currency
	p.PricingEngineVersion = prices.EngineVersion
	p.Prices = prices
	p.UpdatedAt = now
}

// UnfinishedItem returns the item still waiting on the gateway, if any.
func (p *Payment) UnfinishedItem() *PaymentItem {
	for i := range p.Items {
		if !p.Items[i].Status.IsFinished() {
			return &p.Items[i]
		}
	}
	return nil
}

// SucceededItem returns the latest succeeded item of the given kind.
func (p *Payment) SucceededItem(kind PaymentItemKind) *PaymentItem {
	for i := len(p.Items) - 1; i >= 0; i-- {
		if p.Items[i].Kind == kind && p.Items[i].Status == ItemSucceeded {
			return &p.Items[i]
		}
	}
	return nil
}

// AddItem appends a pending item. Callers must check UnfinishedItem first.
func (p *Payment) AddItem(kind PaymentItemKind, amount, gst float64, now time.Time) *PaymentItem {
	p.Items = append(p.Items, PaymentItem{
		ID:        uuid.New(),
		PaymentID: p.ID,
		Kind:      kind,
		Amount:    Round2(amount),
		GstAmount: Round2(gst),
		Currency:  p.Currency,
		Status:    ItemPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return &p.Items[len(p.Items)-1]
}

// WaitListEntry parks a far-future individual appointment until authorization is useful.
type WaitListEntry struct {
	AppointmentID   uuid.UUID
	Attempts        int
	LastAttemptAt   *time.Time
	IsShortTimeSlot bool
	CreatedAt       time.Time
}

// CompanyDepositCharge is a pending top-up of a company deposit.
type CompanyDepositCharge struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Amount    float64
	CreatedAt time.Time
}

// ValidationFailure records why a stage refused to act.
type ValidationFailure struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Stage         Stage
	Reason        string
	Details       map[string]any
	CreatedAt     time.Time
}
