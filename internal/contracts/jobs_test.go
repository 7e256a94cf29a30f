package contracts

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDecodeJobAcceptsWellFormedJobs(t *testing.T) {
	t.Parallel()
	cases := []JobEnvelope{
		{JobID: uuid.NewString(), JobType: JobPreAuthorization, AppointmentID: uuid.NewString(), IsShortTimeSlot: true},
		{JobID: uuid.NewString(), JobType: JobPreAuthorization, AppointmentID: uuid.NewString(), AdditionalBlockDuration: 30},
		{JobID: uuid.NewString(), JobType: JobPreAuthorizationRecreate, AppointmentID: uuid.NewString(), NewAppointmentID: uuid.NewString()},
		{JobID: uuid.NewString(), JobType: JobCompanyDepositCharge, CompanyID: uuid.NewString()},
		{JobID: uuid.NewString(), JobType: JobNotificationSend, Notification: "deposit-low"},
	}
	for _, want := range cases {
		raw, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		got, err := DecodeJob(raw)
		if err != nil {
			t.Fatalf("%s: %v", want.JobType, err)
		}
		if got.JobID != want.JobID || got.JobType != want.JobType {
			t.Fatalf("decoded %+v, want %+v", got, want)
		}
	}
}

func TestValidateJobRejectsMissingIdentifiers(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		job  JobEnvelope
		want string
	}{
		{name: "no job id", job: JobEnvelope{JobType: JobTransfer, AppointmentID: uuid.NewString()}, want: "JobID"},
		{name: "malformed appointment", job: JobEnvelope{JobID: uuid.NewString(), JobType: JobTransfer, AppointmentID: "42"}, want: "AppointmentID"},
		{name: "capture without appointment", job: JobEnvelope{JobID: uuid.NewString(), JobType: JobCaptureAndTransfer}, want: "requires appointment_id"},
		{name: "recreate without new appointment", job: JobEnvelope{JobID: uuid.NewString(), JobType: JobPreAuthorizationRecreate, AppointmentID: uuid.NewString()}, want: "new_appointment_id"},
		{name: "deposit charge without company", job: JobEnvelope{JobID: uuid.NewString(), JobType: JobCompanyDepositCharge}, want: "company_id"},
		{name: "negative attempt", job: JobEnvelope{JobID: uuid.NewString(), JobType: JobTransfer, AppointmentID: uuid.NewString(), Attempt: -1}, want: "Attempt"},
		{name: "oversized extension", job: JobEnvelope{JobID: uuid.NewString(), JobType: JobPreAuthorization, AppointmentID: uuid.NewString(), AdditionalBlockDuration: 2000}, want: "AdditionalBlockDuration"},
	}
	for _, tc := range cases {
		err := ValidateJob(tc.job)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error mentioning %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestDecodeJobRejectsMalformedJSON(t *testing.T) {
	t.Parallel()
	if _, err := DecodeJob([]byte(`{"job_id":`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
