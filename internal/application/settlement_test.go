package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/viralforge/appointment-payments/internal/adapters/gateway"
	"github.com/viralforge/appointment-payments/internal/application"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
)

func TestCancelWithinFreeWindowVoidsHold(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := f.book()
	f.job(t, contracts.JobPreAuthorization, b)

	res := f.job(t, contracts.JobPreAuthorizationCancel, b)
	if res.Strategy != domain.StrategyIndividualCancel {
		t.Fatalf("unexpected strategy %s", res.Strategy)
	}
	p := f.onlyPayment(t, b.Appointment.ID, domain.DirectionIncoming)
	if p.Status != domain.PaymentCancelled || p.SucceededItem(domain.ItemCancellation) == nil {
		t.Fatalf("expected cancelled payment with cancellation item, got %+v", p)
	}
	if f.gw.CallsFor(gateway.OpCancel) != 1 {
		t.Fatalf("expected one gateway cancel, got %+v", f.gw.Calls())
	}

	f.job(t, contracts.JobPreAuthorizationCancel, b)
	if f.gw.CallsFor(gateway.OpCancel) != 1 {
		t.Fatalf("re-delivered cancel must not call the gateway again")
	}
}

func TestCancelInsideLateWindowCharges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := f.book()
	f.job(t, contracts.JobPreAuthorization, b)

	f.now = b.Appointment.ScheduledStartTime.Add(-2 * time.Hour)
	res := f.job(t, contracts.JobPreAuthorizationCancel, b)
	if res.Strategy != domain.StrategyCancelNotAllowed {
		t.Fatalf("expected cancel-not-allowed, got %s", res.Strategy)
	}
	if p := f.onlyPayment(t, b.Appointment.ID, domain.DirectionIncoming); p.Status != domain.PaymentAuthorized {
		t.Fatalf("late cancellation must keep the hold, got %s", p.Status)
	}
	if len(f.queued(t, contracts.JobCaptureAndTransfer)) != 1 {
		t.Fatalf("expected capture job, got %v", f.jobTypes())
	}
	if f.gw.CallsFor(gateway.OpCancel) != 0 {
		t.Fatalf("late cancellation must not void the hold")
	}
}

func TestCancelJobCannotForceVoidInsideLateWindow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := f.book()
	f.job(t, contracts.JobPreAuthorization, b)

	f.now = b.Appointment.ScheduledStartTime.Add(-2 * time.Hour)
	res := f.jobWithStrategy(t, contracts.JobPreAuthorizationCancel, b, domain.StrategyIndividualCancel)
	if res.Strategy != domain.StrategyValidationFailed || res.ValidationReason == "" {
		t.Fatalf("expected validation failure, got %s %q", res.Strategy, res.ValidationReason)
	}
	if p := f.onlyPayment(t, b.Appointment.ID, domain.DirectionIncoming); p.Status != domain.PaymentAuthorized {
		t.Fatalf("hold must survive a mismatched cancel, got %s", p.Status)
	}
	if f.gw.CallsFor(gateway.OpCancel) != 0 {
		t.Fatalf("mismatched cancel reached the gateway: %+v", f.gw.Calls())
	}
	if failures := f.store.ValidationFailures(); len(failures) != 1 || failures[0].Stage != domain.StagePreAuthorizationCancel {
		t.Fatalf("expected one cancel validation failure, got %+v", failures)
	}
}

func TestCancelCorporateReleasesDeposit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	company := depositCompany(1000, 500)
	b := f.book(forCompany(company))
	f.job(t, contracts.JobPreAuthorization, b)
	if c, _ := f.store.Company(company.ID); c.DepositBalance != 910 {
		t.Fatalf("expected reserved balance 910, got %.2f", c.DepositBalance)
	}

	res := f.job(t, contracts.JobPreAuthorizationCancel, b)
	if res.Strategy != domain.StrategyCorporateCancel {
		t.Fatalf("unexpected strategy %s", res.Strategy)
	}
	if c, _ := f.store.Company(company.ID); c.DepositBalance != 1000 {
		t.Fatalf("expected released balance 1000, got %.2f", c.DepositBalance)
	}
	f.job(t, contracts.JobPreAuthorizationCancel, b)
	if c, _ := f.store.Company(company.ID); c.DepositBalance != 1000 {
		t.Fatalf("re-delivered cancel released twice: %.2f", c.DepositBalance)
	}
}

func TestCaptureAndTransferIndividual(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := f.book()
	f.job(t, contracts.JobPreAuthorization, b)

	res := f.job(t, contracts.JobCaptureAndTransfer, b)
	if res.Strategy != domain.StrategyIndividualCapture {
		t.Fatalf("unexpected strategy %s", res.Strategy)
	}
	p := f.onlyPayment(t, b.Appointment.ID, domain.DirectionIncoming)
	if p.Status != domain.PaymentCaptured {
		t.Fatalf("expected captured, got %s", p.Status)
	}
	if len(f.queued(t, contracts.JobTransfer)) != 1 || len(f.queued(t, contracts.JobReceiptGenerate)) != 1 {
		t.Fatalf("expected transfer and receipt jobs, got %v", f.jobTypes())
	}

	f.job(t, contracts.JobCaptureAndTransfer, b)
	if f.gw.CallsFor(gateway.OpCapture) != 1 {
		t.Fatalf("capture must be idempotent, got %d calls", f.gw.CallsFor(gateway.OpCapture))
	}
	p = f.onlyPayment(t, b.Appointment.ID, domain.DirectionIncoming)
	captures := 0
	for _, item := range p.Items {
		if item.Kind == domain.ItemCapture {
			captures++
		}
	}
	if captures != 1 {
		t.Fatalf("expected one capture item, got %d", captures)
	}

	res = f.job(t, contracts.JobTransfer, b)
	if res.Strategy != domain.StrategyIndividualTransfer {
		t.Fatalf("unexpected strategy %s", res.Strategy)
	}
	payout := f.onlyPayment(t, b.Appointment.ID, domain.DirectionOutgoing)
	if payout.Status != domain.PaymentTransferred || payout.TotalAmount != 72 {
		t.Fatalf("unexpected payout %+v", payout)
	}
	if len(res.PaymentIDs) != 1 || res.PaymentIDs[0] != payout.ID {
		t.Fatalf("transfer should report only the payout, got %v", res.PaymentIDs)
	}
	calls := f.gw.Calls()
	last := calls[len(calls)-1]
	if last.Operation != gateway.OpTransfer || last.Request.AmountMinor != 7200 || last.Request.AccountRef != "acct_interpreter" {
		t.Fatalf("unexpected transfer call %+v", last)
	}

	again := f.job(t, contracts.JobTransfer, b)
	if f.gw.CallsFor(gateway.OpTransfer) != 1 || len(f.payments(t, b.Appointment.ID, domain.DirectionOutgoing)) != 1 {
		t.Fatalf("transfer must be idempotent")
	}
	if again.ValidationReason != "" || len(again.PaymentIDs) != 0 {
		t.Fatalf("re-delivered transfer should settle quietly, got %q %v", again.ValidationReason, again.PaymentIDs)
	}
}

func TestCaptureJobCannotForceCorporateStrategy(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := f.book()
	f.job(t, contracts.JobPreAuthorization, b)

	res := f.jobWithStrategy(t, contracts.JobCaptureAndTransfer, b, domain.StrategyCorporateCapture)
	if res.Strategy != domain.StrategyValidationFailed {
		t.Fatalf("expected validation failure, got %s", res.Strategy)
	}
	if p := f.onlyPayment(t, b.Appointment.ID, domain.DirectionIncoming); p.Status != domain.PaymentAuthorized {
		t.Fatalf("payment must stay authorized, got %s", p.Status)
	}
	if f.gw.CallsFor(gateway.OpCapture) != 0 || f.gw.CallsFor(gateway.OpTransfer) != 0 {
		t.Fatalf("mismatched capture reached the gateway: %+v", f.gw.Calls())
	}
	if len(f.payments(t, b.Appointment.ID, domain.DirectionOutgoing)) != 0 {
		t.Fatalf("mismatched capture created a payout")
	}
}

func TestTransferRebasesPayoutForNonGstInterpreter(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := f.book()
	f.job(t, contracts.JobPreAuthorization, b)
	f.job(t, contracts.JobCaptureAndTransfer, b)

	b.Interpreter.IsGstPayer = false
	f.store.PutAppointment(b)
	f.job(t, contracts.JobTransfer, b)

	payout := f.onlyPayment(t, b.Appointment.ID, domain.DirectionOutgoing)
	// 72 inclusive of 6.55 GST.
	if payout.TotalAmount != 65.45 || payout.TotalGstAmount != 0 {
		t.Fatalf("expected pre-tax payout 65.45, got %.2f / %.2f", payout.TotalAmount, payout.TotalGstAmount)
	}
}

func TestTransferToCorporateInterpreterWaitsForPayout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	agency := depositCompany(0, 0)
	b := f.book(interpreterOf(agency.ID))
	f.job(t, contracts.JobPreAuthorization, b)
	f.job(t, contracts.JobCaptureAndTransfer, b)

	res := f.job(t, contracts.JobTransfer, b)
	if res.Strategy != domain.StrategyCorporateWaitListRecord {
		t.Fatalf("unexpected strategy %s", res.Strategy)
	}
	payout := f.onlyPayment(t, b.Appointment.ID, domain.DirectionOutgoing)
	if payout.Status != domain.PaymentWaitingForPayout || payout.CompanyID == nil || *payout.CompanyID != agency.ID {
		t.Fatalf("unexpected payout %+v", payout)
	}
	if f.gw.CallsFor(gateway.OpTransfer) != 0 {
		t.Fatalf("company payouts are batched outside the gateway transfer")
	}
}

func TestCaptureSameCompanyChargesCommissionOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	company := depositCompany(1000, 500)
	b := f.book(forCompany(company), interpreterOf(company.ID))
	f.job(t, contracts.JobPreAuthorization, b)

	res := f.job(t, contracts.JobCaptureAndTransfer, b)
	if res.Strategy != domain.StrategySameCompanyCommission {
		t.Fatalf("unexpected strategy %s", res.Strategy)
	}
	p := f.onlyPayment(t, b.Appointment.ID, domain.DirectionIncoming)
	commission := p.SucceededItem(domain.ItemCommission)
	if commission == nil || commission.Amount != 18 {
		t.Fatalf("expected commission 18, got %+v", commission)
	}
	// 1000 - 90 reserved + 72 released.
	if c, _ := f.store.Company(company.ID); c.DepositBalance != 982 {
		t.Fatalf("expected balance 982, got %.2f", c.DepositBalance)
	}
	if len(f.queued(t, contracts.JobTransfer)) != 0 {
		t.Fatalf("same-company bookings are never paid out, got %v", f.jobTypes())
	}
}

func TestCaptureWithoutPaymentFailsValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	b := f.book()

	res := f.job(t, contracts.JobCaptureAndTransfer, b)
	if res.Strategy != domain.StrategyValidationFailed || res.ValidationReason != "no payment to capture" {
		t.Fatalf("unexpected result %+v", res)
	}
	if failures := f.store.ValidationFailures(); len(failures) != 1 || failures[0].Stage != domain.StageCaptureAndTransfer {
		t.Fatalf("unexpected failures %+v", failures)
	}
}

func TestRecreateReattachesMatchingAuthorization(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	old := f.book()
	f.job(t, contracts.JobPreAuthorization, old)
	successor := f.book(func(b *domain.AppointmentDetails) {
		b.Client = old.Client
	})
	// Totals carried from the replaced appointment must not survive the move.
	stale := f.onlyPayment(t, old.Appointment.ID, domain.DirectionIncoming)
	stale.TotalFullAmount = 135
	stale.TotalGstAmount = 12.27
	stale.Currency = "NZD"
	if err := f.store.Repositories().Payments.Save(ctx, stale); err != nil {
		t.Fatalf("seed stale totals: %v", err)
	}

	rctx, err := f.svc.LoadPaymentContextForRecreate(ctx, old.Appointment.ID, successor.Appointment.ID, application.ContextOptions{})
	if err != nil {
		t.Fatalf("load recreate context: %v", err)
	}
	strategy := f.svc.SelectRecreateStrategy(rctx)
	if strategy != domain.StrategyReattachExistingPayment {
		t.Fatalf("expected reattach, got %s", strategy)
	}
	if _, err := f.svc.MakePreAuthorizationRecreate(ctx, strategy, rctx); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if got := len(f.payments(t, old.Appointment.ID, domain.DirectionIncoming)); got != 0 {
		t.Fatalf("old appointment still has %d payments", got)
	}
	moved := f.onlyPayment(t, successor.Appointment.ID, domain.DirectionIncoming)
	if moved.Status != domain.PaymentAuthorized {
		t.Fatalf("moved payment should stay authorized, got %s", moved.Status)
	}
	want := rctx.New.Prices
	if moved.TotalFullAmount != want.TotalFullAmount || moved.TotalGstAmount != want.TotalGstAmount || moved.TotalAmount != want.TotalAmount {
		t.Fatalf("moved totals %.2f/%.2f/%.2f disagree with successor prices %+v", moved.TotalAmount, moved.TotalFullAmount, moved.TotalGstAmount, want)
	}
	if moved.Currency != domain.DefaultCurrency || moved.Prices.TotalFullAmount != moved.TotalFullAmount {
		t.Fatalf("moved payment kept stale currency or snapshot: %+v", moved)
	}
	if f.gw.CallsFor(gateway.OpCancel) != 0 || f.gw.CallsFor(gateway.OpAuthorize) != 1 {
		t.Fatalf("reattach must not touch the gateway, got %+v", f.gw.Calls())
	}
	jobs := f.queued(t, contracts.JobPreAuthorization)
	if len(jobs) != 1 || jobs[0].AppointmentID != successor.Appointment.ID.String() {
		t.Fatalf("expected pre-authorization for the successor, got %+v", jobs)
	}
}

func TestRecreateWithNewPriceCancelsAndReauthorizes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	old := f.book()
	f.job(t, contracts.JobPreAuthorization, old)
	successor := f.book(lasting(90), func(b *domain.AppointmentDetails) {
		b.Client = old.Client
	})

	res, err := f.svc.HandleJob(ctx, contracts.JobEnvelope{
		JobID:            "9d4a5b6c-7e8f-4a9b-8c0d-1e2f3a4b5c6d",
		JobType:          contracts.JobPreAuthorizationRecreate,
		AppointmentID:    old.Appointment.ID.String(),
		NewAppointmentID: successor.Appointment.ID.String(),
	})
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if res.Strategy != domain.StrategyCancelAndReauthIndividual {
		t.Fatalf("unexpected strategy %s", res.Strategy)
	}
	if p := f.onlyPayment(t, old.Appointment.ID, domain.DirectionIncoming); p.Status != domain.PaymentCancelled {
		t.Fatalf("old authorization should be voided, got %s", p.Status)
	}
	if f.gw.CallsFor(gateway.OpCancel) != 1 {
		t.Fatalf("expected one gateway cancel")
	}
	jobs := f.queued(t, contracts.JobPreAuthorization)
	if len(jobs) != 1 || jobs[0].AppointmentID != successor.Appointment.ID.String() {
		t.Fatalf("expected pre-authorization for the successor, got %+v", jobs)
	}

	f.job(t, contracts.JobPreAuthorization, successor)
	if p := f.onlyPayment(t, successor.Appointment.ID, domain.DirectionIncoming); p.TotalAmount != 120 || p.Status != domain.PaymentAuthorized {
		t.Fatalf("unexpected successor payment %+v", p)
	}
}
