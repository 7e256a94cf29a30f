package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type rateModel struct {
	RateID                             uuid.UUID `gorm:"column:rate_id;type:uuid;primaryKey"`
	InterpreterType                    string    `gorm:"column:interpreter_type;uniqueIndex:rates_tuple_slot_uq"`
	SchedulingType                     string    `gorm:"column:scheduling_type;uniqueIndex:rates_tuple_slot_uq"`
	CommunicationType                  string    `gorm:"column:communication_type;uniqueIndex:rates_tuple_slot_uq"`
	InterpretingType                   string    `gorm:"column:interpreting_type;uniqueIndex:rates_tuple_slot_uq"`
	Qualifier                          string    `gorm:"column:qualifier;uniqueIndex:rates_tuple_slot_uq"`
	Sequence                           string    `gorm:"column:sequence;uniqueIndex:rates_tuple_slot_uq"`
	DetailsTime                        int       `gorm:"column:details_time"`
	PaidByTakerGeneralWithGst          float64   `gorm:"column:paid_by_taker_general_with_gst"`
	PaidByTakerGeneralWithoutGst       float64   `gorm:"column:paid_by_taker_general_without_gst"`
	PaidByTakerSpecialWithGst          float64   `gorm:"column:paid_by_taker_special_with_gst"`
	PaidByTakerSpecialWithoutGst       float64   `gorm:"column:paid_by_taker_special_without_gst"`
	PaidToInterpreterGeneralWithGst    float64   `gorm:"column:paid_to_interpreter_general_with_gst"`
	PaidToInterpreterGeneralWithoutGst float64   `gorm:"column:paid_to_interpreter_general_without_gst"`
	PaidToInterpreterSpecialWithGst    float64   `gorm:"column:paid_to_interpreter_special_with_gst"`
	PaidToInterpreterSpecialWithoutGst float64   `gorm:"column:paid_to_interpreter_special_without_gst"`
	UpdatedAt                          time.Time `gorm:"column:updated_at"`
}

func (rateModel) TableName() string { return "rates" }

type paymentModel struct {
	PaymentID            uuid.UUID      `gorm:"column:payment_id;type:uuid;primaryKey"`
	AppointmentID        uuid.UUID      `gorm:"column:appointment_id;type:uuid"`
	CompanyID            *uuid.UUID     `gorm:"column:company_id;type:uuid"`
	Direction            string         `gorm:"column:direction"`
	Operation            string         `gorm:"column:operation"`
	Status               string         `gorm:"column:status"`
	TotalAmount          float64        `gorm:"column:total_amount"`
	TotalGstAmount       float64        `gorm:"column:total_gst_amount"`
	TotalFullAmount      float64        `gorm:"column:total_full_amount"`
	Currency             string         `gorm:"column:currency"`
	PricingEngineVersion string         `gorm:"column:pricing_engine_version"`
	WindowStart          time.Time      `gorm:"column:window_start"`
	Breakdown            datatypes.JSON `gorm:"column:breakdown;type:jsonb"`
	CreatedAt            time.Time      `gorm:"column:created_at"`
	UpdatedAt            time.Time      `gorm:"column:updated_at"`
}

func (paymentModel) TableName() string { return "payments" }

type paymentItemModel struct {
	ItemID     uuid.UUID `gorm:"column:item_id;type:uuid;primaryKey"`
	PaymentID  uuid.UUID `gorm:"column:payment_id;type:uuid"`
	Kind       string    `gorm:"column:kind"`
	ExternalID string    `gorm:"column:external_id"`
	Amount     float64   `gorm:"column:amount"`
	GstAmount  float64   `gorm:"column:gst_amount"`
	Currency   string    `gorm:"column:currency"`
	Status     string    `gorm:"column:status"`
	Note       string    `gorm:"column:note"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (paymentItemModel) TableName() string { return "payment_items" }

type waitListModel struct {
	AppointmentID   uuid.UUID  `gorm:"column:appointment_id;type:uuid;primaryKey"`
	Attempts        int        `gorm:"column:attempts"`
	LastAttemptAt   *time.Time `gorm:"column:last_attempt_at"`
	IsShortTimeSlot bool       `gorm:"column:is_short_time_slot"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
}

func (waitListModel) TableName() string { return "incoming_payment_wait_list" }

type depositChargeModel struct {
	ChargeID  uuid.UUID `gorm:"column:charge_id;type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"column:company_id;type:uuid;uniqueIndex"`
	Amount    float64   `gorm:"column:amount"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (depositChargeModel) TableName() string { return "company_deposit_charges" }

type validationFailureModel struct {
	FailureID     uuid.UUID      `gorm:"column:failure_id;type:uuid;primaryKey"`
	AppointmentID *uuid.UUID     `gorm:"column:appointment_id;type:uuid"`
	Stage         string         `gorm:"column:stage"`
	Reason        string         `gorm:"column:reason"`
	Details       datatypes.JSON `gorm:"column:details;type:jsonb"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
}

func (validationFailureModel) TableName() string { return "payment_validation_failures" }

type outboxModel struct {
	OutboxID       uuid.UUID      `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string         `gorm:"column:event_type"`
	PartitionKey   string         `gorm:"column:partition_key"`
	Payload        datatypes.JSON `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
	PublishedAt    *time.Time     `gorm:"column:published_at"`
	RetryCount     int            `gorm:"column:retry_count"`
	LastError      *string        `gorm:"column:last_error"`
	LastErrorAt    *time.Time     `gorm:"column:last_error_at"`
	ClaimToken     *string        `gorm:"column:claim_token"`
	ClaimUntil     *time.Time     `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time     `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "payment_job_outbox" }

type companyModel struct {
	CompanyID            uuid.UUID `gorm:"column:company_id;type:uuid;primaryKey"`
	Name                 string    `gorm:"column:name"`
	FundingMode          string    `gorm:"column:funding_mode"`
	DepositBalance       float64   `gorm:"column:deposit_balance"`
	DepositDefaultCharge float64   `gorm:"column:deposit_default_charge"`
	IsGstPayer           bool      `gorm:"column:is_gst_payer"`
	PaymentMethodRef     string    `gorm:"column:payment_method_ref"`
}

func (companyModel) TableName() string { return "companies" }

type clientModel struct {
	ClientID         uuid.UUID  `gorm:"column:client_id;type:uuid;primaryKey"`
	Role             string     `gorm:"column:role"`
	IsGstPayer       bool       `gorm:"column:is_gst_payer"`
	CompanyID        *uuid.UUID `gorm:"column:company_id;type:uuid"`
	PaymentMethodRef string     `gorm:"column:payment_method_ref"`
}

func (clientModel) TableName() string { return "clients" }

type interpreterModel struct {
	InterpreterID    uuid.UUID  `gorm:"column:interpreter_id;type:uuid;primaryKey"`
	Role             string     `gorm:"column:role"`
	IsGstPayer       bool       `gorm:"column:is_gst_payer"`
	CompanyID        *uuid.UUID `gorm:"column:company_id;type:uuid"`
	PayoutAccountRef string     `gorm:"column:payout_account_ref"`
}

func (interpreterModel) TableName() string { return "interpreters" }

type appointmentModel struct {
	AppointmentID      uuid.UUID  `gorm:"column:appointment_id;type:uuid;primaryKey"`
	ClientID           uuid.UUID  `gorm:"column:client_id;type:uuid"`
	InterpreterID      *uuid.UUID `gorm:"column:interpreter_id;type:uuid"`
	ScheduledStartTime time.Time  `gorm:"column:scheduled_start_time"`
	DurationMinutes    int        `gorm:"column:duration_minutes"`
	CommunicationType  string     `gorm:"column:communication_type"`
	SchedulingType     string     `gorm:"column:scheduling_type"`
	InterpretingType   string     `gorm:"column:interpreting_type"`
	InterpreterType    string     `gorm:"column:interpreter_type"`
	Topic              string     `gorm:"column:topic"`
	Status             string     `gorm:"column:status"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
}

func (appointmentModel) TableName() string { return "appointments" }

type discountRateModel struct {
	ClientID                  uuid.UUID  `gorm:"column:client_id;type:uuid;primaryKey"`
	ValidFrom                 time.Time  `gorm:"column:valid_from;primaryKey"`
	ValidUntil                *time.Time `gorm:"column:valid_until"`
	MembershipFreeMinutes     int        `gorm:"column:membership_free_minutes"`
	MembershipDiscountPercent float64    `gorm:"column:membership_discount_percent"`
	PromoDiscountPercent      float64    `gorm:"column:promo_discount_percent"`
	PromoDiscountMinutes      int        `gorm:"column:promo_discount_minutes"`
	PromoCampaignName         string     `gorm:"column:promo_campaign_name"`
}

func (discountRateModel) TableName() string { return "client_discount_rates" }

// AllModels lists every table this package maps, for tests that build the
// schema with AutoMigrate instead of the SQL migrations.
func AllModels() []any {
	return []any{
		&rateModel{}, &paymentModel{}, &paymentItemModel{}, &waitListModel{},
		&depositChargeModel{}, &validationFailureModel{}, &outboxModel{},
		&companyModel{}, &clientModel{}, &interpreterModel{}, &appointmentModel{},
		&discountRateModel{},
	}
}
