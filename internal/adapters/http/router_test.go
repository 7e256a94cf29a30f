package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/adapters/gateway"
	"github.com/viralforge/appointment-payments/internal/adapters/memory"
	"github.com/viralforge/appointment-payments/internal/application"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
)

const (
	testSecret = "test-secret"
	testIssuer = "payments-test"
)

var testNow = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

type testServer struct {
	router http.Handler
	store  *memory.Store
	token  string
}

func newTestServer(t *testing.T, checks map[string]ReadinessCheck) *testServer {
	t.Helper()
	store := memory.NewStore()
	nowFn := func() time.Time { return testNow }
	store.PutRates(
		testRate(domain.QualifierStandardHours, domain.SequenceFirstBlock, 60),
		testRate(domain.QualifierStandardHours, domain.SequenceAdditionalBlock, 30),
		testRate(domain.QualifierAfterHours, domain.SequenceFirstBlock, 90),
		testRate(domain.QualifierAfterHours, domain.SequenceAdditionalBlock, 45),
	)
	repos := store.Repositories()
	svc := application.NewService(application.Dependencies{
		Tx:           store,
		Payments:     repos.Payments,
		WaitList:     repos.WaitList,
		Rates:        store.Rates(),
		RateCache:    memory.NewRateCache(nowFn),
		Appointments: store,
		Discounts:    store,
		Gateway:      gateway.NewSandbox(),
		Jobs:         store,
		Now:          nowFn,
	})
	verifier, err := NewAdminTokenVerifier(testSecret, testIssuer)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	token, err := IssueAdminToken(testSecret, testIssuer, "ops@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return &testServer{router: NewRouter(NewHandler(svc, checks), verifier), store: store, token: token}
}

func testRate(q domain.RateQualifier, s domain.RateSequence, taker float64) domain.Rate {
	return domain.Rate{
		ID:                              uuid.New(),
		InterpreterType:                 domain.InterpreterProfessional,
		SchedulingType:                  domain.SchedulingPreBooked,
		CommunicationType:               domain.CommunicationVideo,
		InterpretingType:                domain.InterpretingConsecutive,
		Qualifier:                       q,
		Sequence:                        s,
		DetailsTime:                     30,
		PaidByTakerGeneralWithGst:       taker,
		PaidByTakerSpecialWithGst:       taker,
		PaidToInterpreterGeneralWithGst: taker * 0.8,
		PaidToInterpreterSpecialWithGst: taker * 0.8,
	}
}

func (s *testServer) book() uuid.UUID {
	id, clientID := uuid.New(), uuid.New()
	s.store.PutAppointment(domain.AppointmentDetails{
		Appointment: domain.Appointment{
			ID:                 id,
			ClientID:           clientID,
			ScheduledStartTime: testNow.Add(72 * time.Hour),
			DurationMinutes:    60,
			CommunicationType:  domain.CommunicationVideo,
			SchedulingType:     domain.SchedulingPreBooked,
			InterpretingType:   domain.InterpretingConsecutive,
			InterpreterType:    domain.InterpreterProfessional,
			Topic:              domain.TopicGeneral,
			Status:             domain.AppointmentAccepted,
			CreatedAt:          testNow.Add(-24 * time.Hour),
		},
		Client: domain.Client{ID: clientID, Role: domain.RoleIndividualClient, IsGstPayer: true, PaymentMethodRef: "pm_client"},
	})
	return id
}

func (s *testServer) do(t *testing.T, method, path string, body any, authorized bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body == nil {
		req.ContentLength = 0
	}
	if authorized {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Status != "success" {
		t.Fatalf("unexpected status %q", envelope.Status)
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
	})
	if rec := srv.do(t, http.MethodGet, "/healthz", nil, false); rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodGet, "/readyz", nil, false); rec.Code != http.StatusOK {
		t.Fatalf("readyz status %d", rec.Code)
	}

	failing := newTestServer(t, map[string]ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := failing.do(t, http.MethodGet, "/readyz", nil, false)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("request id header missing")
	}
}

func TestInternalRoutesRequireAdminToken(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	path := "/internal/v1/appointments/" + uuid.NewString() + "/quote"

	if rec := srv.do(t, http.MethodGet, path, nil, false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	wrong, err := IssueAdminToken("other-secret", testIssuer, "ops", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+wrong)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign signature, got %d", rec.Code)
	}
}

func TestQuoteEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	id := srv.book()

	rec := srv.do(t, http.MethodGet, "/internal/v1/appointments/"+id.String()+"/quote", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("quote status %d: %s", rec.Code, rec.Body.String())
	}
	var prices domain.PaymentPrices
	decodeData(t, rec, &prices)
	if prices.TotalAmount != 90 || prices.TotalGstAmount != 8.18 || prices.EngineVersion != domain.PricingEngineCurrent {
		t.Fatalf("unexpected quote %+v", prices)
	}

	rec = srv.do(t, http.MethodGet, "/internal/v1/appointments/"+id.String()+"/quote?additional_block_duration=30", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("extension quote status %d", rec.Code)
	}
	decodeData(t, rec, &prices)
	if prices.TotalAmount != 60 || prices.DurationMinutes != 30 {
		t.Fatalf("unexpected extension quote %+v", prices)
	}
}

func TestQuoteEndpointErrors(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	cases := []struct {
		path string
		code int
	}{
		{path: "/internal/v1/appointments/not-a-uuid/quote", code: http.StatusBadRequest},
		{path: "/internal/v1/appointments/" + uuid.NewString() + "/quote", code: http.StatusNotFound},
		{path: "/internal/v1/appointments/" + uuid.NewString() + "/quote?additional_block_duration=-5", code: http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := srv.do(t, http.MethodGet, tc.path, nil, true); rec.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.code, rec.Code)
		}
	}
}

func TestPaymentContextPreview(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	id := srv.book()

	rec := srv.do(t, http.MethodGet, "/internal/v1/appointments/"+id.String()+"/payment-context", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("payment context status %d: %s", rec.Code, rec.Body.String())
	}
	var resp paymentContextResponse
	decodeData(t, rec, &resp)
	if resp.AppointmentID != id || resp.IsCorporate || resp.Prices == nil || resp.Prices.TotalAmount != 90 {
		t.Fatalf("unexpected preview %+v", resp)
	}
	if len(srv.store.Jobs()) != 0 {
		t.Fatalf("preview must not enqueue work")
	}
}

func TestInvalidateRates(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	if rec := srv.do(t, http.MethodPost, "/internal/v1/rates/invalidate", nil, true); rec.Code != http.StatusOK {
		t.Fatalf("invalidate all status %d", rec.Code)
	}
	body := map[string]any{"tuple": map[string]any{"interpreter_type": ""}}
	if rec := srv.do(t, http.MethodPost, "/internal/v1/rates/invalidate", body, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid tuple should be rejected, got %d", rec.Code)
	}
}

func TestEnqueueJobEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	job := contracts.JobEnvelope{JobType: contracts.JobCaptureAndTransfer, AppointmentID: uuid.NewString()}

	rec := srv.do(t, http.MethodPost, "/internal/v1/jobs", job, true)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("enqueue status %d: %s", rec.Code, rec.Body.String())
	}
	jobs := srv.store.Jobs()
	if len(jobs) != 1 || jobs[0].EventType != contracts.JobCaptureAndTransfer {
		t.Fatalf("unexpected queued jobs %+v", jobs)
	}

	missing := contracts.JobEnvelope{JobType: contracts.JobTransfer}
	if rec := srv.do(t, http.MethodPost, "/internal/v1/jobs", missing, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("job without appointment should be rejected, got %d", rec.Code)
	}
}
