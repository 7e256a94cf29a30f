package contracts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Jobs consumed by the payment worker.
const (
	JobPreAuthorization         = "payment.pre-authorization"
	JobPreAuthorizationRecreate = "payment.pre-authorization-recreate"
	JobPreAuthorizationCancel   = "payment.pre-authorization-cancel"
	JobCaptureAndTransfer       = "payment.capture-and-transfer"
	JobTransfer                 = "payment.transfer"
	JobCompanyDepositCharge     = "payment.company-deposit-charge"
)

// Jobs produced for other subsystems.
const (
	JobAppointmentSearchStart      = "appointment.search-start"
	JobAppointmentEndTimeExtension = "appointment.end-time-extension"
	JobReceiptGenerate             = "payment.receipt-generate"
	JobPayoutReceiptGenerate       = "payment.payout-receipt-generate"
	JobNotificationSend            = "notification.send"
	// JobDeadLetter carries a payment job that exhausted its retries.
	JobDeadLetter = "payment.job-dead-letter"
)

// PaymentJobTypes lists the job types the worker subscribes to.
var PaymentJobTypes = []string{
	JobPreAuthorization,
	JobPreAuthorizationRecreate,
	JobPreAuthorizationCancel,
	JobCaptureAndTransfer,
	JobTransfer,
	JobCompanyDepositCharge,
}

// JobEnvelope is the wire payload of every queued job.
type JobEnvelope struct {
	JobID                   string    `json:"job_id" validate:"required,uuid"`
	JobType                 string    `json:"job_type" validate:"required"`
	Strategy                string    `json:"strategy,omitempty"`
	AppointmentID           string    `json:"appointment_id,omitempty" validate:"omitempty,uuid"`
	NewAppointmentID        string    `json:"new_appointment_id,omitempty" validate:"omitempty,uuid"`
	CompanyID               string    `json:"company_id,omitempty" validate:"omitempty,uuid"`
	AdditionalBlockDuration int       `json:"additional_block_duration,omitempty" validate:"gte=0,lte=1440"`
	IsShortTimeSlot         bool      `json:"is_short_time_slot,omitempty"`
	Notification            string    `json:"notification,omitempty"`
	Attempt                 int       `json:"attempt" validate:"gte=0"`
	EnqueuedAt              time.Time `json:"enqueued_at"`
	LastError               string    `json:"last_error,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeJob parses and validates a job payload.
func DecodeJob(raw []byte) (JobEnvelope, error) {
	var env JobEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return JobEnvelope{}, fmt.Errorf("decode job: %w", err)
	}
	if err := ValidateJob(env); err != nil {
		return JobEnvelope{}, err
	}
	return env, nil
}

// ValidateJob checks field formats and the identifiers each job type needs.
func ValidateJob(env JobEnvelope) error {
	if err := validate.Struct(env); err != nil {
		return fmt.Errorf("validate job: %w", err)
	}
	switch env.JobType {
	case JobPreAuthorization, JobPreAuthorizationCancel, JobCaptureAndTransfer, JobTransfer:
		if env.AppointmentID == "" {
			return fmt.Errorf("validate job: %s requires appointment_id", env.JobType)
		}
	case JobPreAuthorizationRecreate:
		if env.AppointmentID == "" || env.NewAppointmentID == "" {
			return fmt.Errorf("validate job: %s requires appointment_id and new_appointment_id", env.JobType)
		}
	case JobCompanyDepositCharge:
		if env.CompanyID == "" {
			return fmt.Errorf("validate job: %s requires company_id", env.JobType)
		}
	}
	return nil
}
