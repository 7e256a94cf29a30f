package application_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/adapters/gateway"
	"github.com/viralforge/appointment-payments/internal/adapters/memory"
	"github.com/viralforge/appointment-payments/internal/application"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
)

type fixture struct {
	svc   *application.Service
	store *memory.Store
	gw    *gateway.Sandbox
	cache *memory.RateCache
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithConfig(t, application.Config{})
}

func newFixtureWithConfig(t *testing.T, cfg application.Config) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewStore(),
		gw:    gateway.NewSandbox(),
		// Monday 10:00 UTC.
		now: time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
	}
	nowFn := func() time.Time { return f.now }
	f.cache = memory.NewRateCache(nowFn)
	f.store.PutRates(standardRates()...)

	repos := f.store.Repositories()
	f.svc = application.NewService(application.Dependencies{
		Config:       cfg,
		Tx:           f.store,
		Payments:     repos.Payments,
		WaitList:     repos.WaitList,
		Rates:        f.store.Rates(),
		RateCache:    f.cache,
		Appointments: f.store,
		Discounts:    f.store,
		Gateway:      f.gw,
		Jobs:         f.store,
		Now:          nowFn,
	})
	return f
}

func videoRate(q domain.RateQualifier, s domain.RateSequence, taker, interpreter float64) domain.Rate {
	return domain.Rate{
		InterpreterType:                 domain.InterpreterProfessional,
		SchedulingType:                  domain.SchedulingPreBooked,
		CommunicationType:               domain.CommunicationVideo,
		InterpretingType:                domain.InterpretingConsecutive,
		Qualifier:                       q,
		Sequence:                        s,
		DetailsTime:                     30,
		PaidByTakerGeneralWithGst:       taker,
		PaidByTakerSpecialWithGst:       taker,
		PaidToInterpreterGeneralWithGst: interpreter,
		PaidToInterpreterSpecialWithGst: interpreter,
	}
}

// $60 for the first 30 minutes, $1/min after that, 1.5x after hours.
func standardRates() []domain.Rate {
	return []domain.Rate{
		videoRate(domain.QualifierStandardHours, domain.SequenceFirstBlock, 60, 48),
		videoRate(domain.QualifierStandardHours, domain.SequenceAdditionalBlock, 30, 24),
		videoRate(domain.QualifierAfterHours, domain.SequenceFirstBlock, 90, 72),
		videoRate(domain.QualifierAfterHours, domain.SequenceAdditionalBlock, 45, 36),
	}
}

type bookingOption func(*domain.AppointmentDetails)

func startingIn(d time.Duration, now time.Time) bookingOption {
	return func(b *domain.AppointmentDetails) { b.Appointment.ScheduledStartTime = now.Add(d) }
}

func lasting(minutes int) bookingOption {
	return func(b *domain.AppointmentDetails) { b.Appointment.DurationMinutes = minutes }
}

func withoutPaymentMethod() bookingOption {
	return func(b *domain.AppointmentDetails) { b.Client.PaymentMethodRef = "" }
}

func forCompany(c domain.Company) bookingOption {
	return func(b *domain.AppointmentDetails) {
		b.Client.Role = domain.RoleCorporateClient
		b.Client.CompanyID = &c.ID
		b.Company = &c
	}
}

func interpreterOf(companyID uuid.UUID) bookingOption {
	return func(b *domain.AppointmentDetails) {
		b.Interpreter.Role = domain.RoleCorporateInterpreter
		b.Interpreter.CompanyID = &companyID
	}
}

// book stores a 60 minute professional video appointment three days out,
// created the day before now.
func (f *fixture) book(opts ...bookingOption) domain.AppointmentDetails {
	interpreterID := uuid.New()
	b := domain.AppointmentDetails{
		Appointment: domain.Appointment{
			ID:                 uuid.New(),
			InterpreterID:      &interpreterID,
			ScheduledStartTime: f.now.Add(72 * time.Hour),
			DurationMinutes:    60,
			CommunicationType:  domain.CommunicationVideo,
			SchedulingType:     domain.SchedulingPreBooked,
			InterpretingType:   domain.InterpretingConsecutive,
			InterpreterType:    domain.InterpreterProfessional,
			Topic:              domain.TopicGeneral,
			Status:             domain.AppointmentAccepted,
			CreatedAt:          f.now.Add(-24 * time.Hour),
		},
		Client: domain.Client{
			ID:               uuid.New(),
			Role:             domain.RoleIndividualClient,
			IsGstPayer:       true,
			PaymentMethodRef: "pm_client",
		},
		Interpreter: &domain.Interpreter{
			ID:               interpreterID,
			Role:             domain.RoleIndividualInterpreter,
			IsGstPayer:       true,
			PayoutAccountRef: "acct_interpreter",
		},
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.Appointment.ClientID = b.Client.ID
	f.store.PutAppointment(b)
	return b
}

func depositCompany(balance, defaultCharge float64) domain.Company {
	return domain.Company{
		ID:                   uuid.New(),
		Name:                 "Acme Health",
		FundingMode:          domain.FundingDeposit,
		DepositBalance:       balance,
		DepositDefaultCharge: defaultCharge,
		IsGstPayer:           true,
		PaymentMethodRef:     "pm_company",
	}
}

func (f *fixture) job(t *testing.T, jobType string, b domain.AppointmentDetails) application.StageResult {
	t.Helper()
	return f.jobWithStrategy(t, jobType, b, "")
}

func (f *fixture) jobWithStrategy(t *testing.T, jobType string, b domain.AppointmentDetails, strategy domain.StrategyName) application.StageResult {
	t.Helper()
	res, err := f.svc.HandleJob(context.Background(), contracts.JobEnvelope{
		JobID:         uuid.NewString(),
		JobType:       jobType,
		AppointmentID: b.Appointment.ID.String(),
		Strategy:      string(strategy),
	})
	if err != nil {
		t.Fatalf("%s: %v", jobType, err)
	}
	return res
}

func (f *fixture) payments(t *testing.T, appointmentID uuid.UUID, direction domain.PaymentDirection) []*domain.Payment {
	t.Helper()
	out, err := f.store.Repositories().Payments.ListByAppointment(context.Background(), appointmentID, direction)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	return out
}

func (f *fixture) onlyPayment(t *testing.T, appointmentID uuid.UUID, direction domain.PaymentDirection) *domain.Payment {
	t.Helper()
	out := f.payments(t, appointmentID, direction)
	if len(out) != 1 {
		t.Fatalf("expected exactly one %s payment, got %d", direction, len(out))
	}
	return out[0]
}

func (f *fixture) jobTypes() []string {
	var out []string
	for _, e := range f.store.Jobs() {
		out = append(out, e.EventType)
	}
	return out
}

func (f *fixture) queued(t *testing.T, jobType string) []contracts.JobEnvelope {
	t.Helper()
	var out []contracts.JobEnvelope
	for _, e := range f.store.Jobs() {
		if e.EventType != jobType {
			continue
		}
		var env contracts.JobEnvelope
		if err := json.Unmarshal(e.Payload, &env); err != nil {
			t.Fatalf("decode queued job: %v", err)
		}
		out = append(out, env)
	}
	return out
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
