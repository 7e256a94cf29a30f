package application

import (
	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
)

// ContextOptions tune how an authorization context is assembled.
type ContextOptions struct {
	// AdditionalBlockDuration > 0 authorizes an extension of that many minutes
	// starting at the scheduled end.
	AdditionalBlockDuration int
	IsShortTimeSlot         bool
	// Prices skips recomputation when the caller already priced the request.
	Prices *domain.PaymentPrices
}

type TimingFlags struct {
	IsTooLateToAuthorize       bool `json:"is_too_late_to_authorize"`
	BookedAtLeast24HoursBefore bool `json:"booked_at_least_24_hours_before"`
	BookedAtLeast6HoursBefore  bool `json:"booked_at_least_6_hours_before"`
	IsBeyondWaitListThreshold  bool `json:"is_beyond_wait_list_threshold"`
}

// AuthorizationContext is everything the pre-authorization stage needs to pick
// and run a strategy.
type AuthorizationContext struct {
	Details                 domain.AppointmentDetails
	IsCorporate             bool
	Operation               domain.PaymentOperation
	AdditionalBlockDuration int
	IsShortTimeSlot         bool
	Timing                  TimingFlags
	IsWaitListRedirect      bool
	Prices                  *domain.PaymentPrices
	Deposit                 *domain.DepositAssessment
	ExistingPayment         *domain.Payment
	ValidationReason        string
}

func (c *AuthorizationContext) appointmentID() uuid.UUID { return c.Details.Appointment.ID }
func (c *AuthorizationContext) validationReason() string { return c.ValidationReason }

// RecreateContext moves an authorization from a replaced appointment to its successor.
type RecreateContext struct {
	OldAppointmentID uuid.UUID
	New              *AuthorizationContext
	OldPayment       *domain.Payment
	ValidationReason string
}

func (c *RecreateContext) appointmentID() uuid.UUID { return c.OldAppointmentID }
func (c *RecreateContext) validationReason() string { return c.ValidationReason }

type CancelContext struct {
	Details             domain.AppointmentDetails
	IsCorporate         bool
	OpenPayments        []*domain.Payment
	IsWaitListed        bool
	CancellationAllowed bool
	ValidationReason    string
}

func (c *CancelContext) appointmentID() uuid.UUID { return c.Details.Appointment.ID }
func (c *CancelContext) validationReason() string { return c.ValidationReason }

// SettlementContext drives the capture & transfer stage.
type SettlementContext struct {
	Details          domain.AppointmentDetails
	IsCorporate      bool
	IsSameCompany    bool
	Payments         []*domain.Payment
	ValidationReason string
}

func (c *SettlementContext) appointmentID() uuid.UUID { return c.Details.Appointment.ID }
func (c *SettlementContext) validationReason() string { return c.ValidationReason }

type TransferContext struct {
	Details          domain.AppointmentDetails
	CapturedIncoming []*domain.Payment
	Outgoing         []*domain.Payment
	ValidationReason string
}

func (c *TransferContext) appointmentID() uuid.UUID { return c.Details.Appointment.ID }
func (c *TransferContext) validationReason() string { return c.ValidationReason }

// DepositChargeContext drives a company deposit top-up.
type DepositChargeContext struct {
	CompanyID        uuid.UUID
	Company          *domain.Company
	Charge           *domain.CompanyDepositCharge
	ValidationReason string
}

func (c *DepositChargeContext) appointmentID() uuid.UUID { return uuid.Nil }
func (c *DepositChargeContext) validationReason() string { return c.ValidationReason }

// Effect is work that must only happen after the stage transaction commits.
// Critical effects fail the job so the queue retries the stage; the rest are logged.
type Effect struct {
	Job      contracts.JobEnvelope
	Critical bool
}

// StageResult reports what a stage did.
type StageResult struct {
	Stage            domain.Stage
	Strategy         domain.StrategyName
	AppointmentID    uuid.UUID
	PaymentIDs       []uuid.UUID
	Effects          []Effect
	ValidationReason string
}
