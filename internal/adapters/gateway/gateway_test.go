package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/viralforge/appointment-payments/internal/ports"
)

func TestHTTPGatewaySendsIdempotentAuthorizedRequests(t *testing.T) {
	t.Parallel()
	var gotPath, gotKey, gotAuth string
	var gotBody gatewayRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"auth_123","status":"authorized"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL+"/", "sk_test", time.Second)
	res, err := g.CreateAuthorization(context.Background(), ports.GatewayRequest{
		IdempotencyKey: "pay-1:authorize",
		AmountMinor:    9000,
		Currency:       "AUD",
		AccountRef:     "pm_client",
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if res.ExternalID != "auth_123" || res.Status != "authorized" {
		t.Fatalf("unexpected result %+v", res)
	}
	if gotPath != "/v1/authorizations" || gotKey != "pay-1:authorize" || gotAuth != "Bearer sk_test" {
		t.Fatalf("unexpected request path=%q key=%q auth=%q", gotPath, gotKey, gotAuth)
	}
	if gotBody.Amount != 9000 || gotBody.Currency != "aud" || gotBody.Account != "pm_client" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestHTTPGatewayCaptureUsesAuthorizationPath(t *testing.T) {
	t.Parallel()
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"id":"cap_1","status":"captured"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "", time.Second)
	if _, err := g.CaptureAuthorization(context.Background(), ports.GatewayRequest{IdempotencyKey: "k"}); err == nil {
		t.Fatalf("capture without authorization id should fail")
	}
	if _, err := g.CaptureAuthorization(context.Background(), ports.GatewayRequest{IdempotencyKey: "k", ExternalID: "auth_9"}); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if gotPath != "/v1/authorizations/auth_9/capture" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestHTTPGatewayReturnsStatusError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"code":"card_declined","message":"insufficient funds"}}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "sk_test", time.Second)
	_, err := g.TransferFunds(context.Background(), ports.GatewayRequest{IdempotencyKey: "tr-1", AmountMinor: 100})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected status error, got %v", err)
	}
	if statusErr.StatusCode != http.StatusPaymentRequired || statusErr.Code != "card_declined" {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
}

func TestHTTPGatewayRequiresIdempotencyKey(t *testing.T) {
	t.Parallel()
	g := NewHTTPGateway("http://127.0.0.1:1", "", time.Second)
	if _, err := g.ChargeByGatewayDebit(context.Background(), ports.GatewayRequest{AmountMinor: 100}); err == nil {
		t.Fatalf("expected missing idempotency key error")
	}
}

func TestSandboxIsIdempotentPerOperation(t *testing.T) {
	t.Parallel()
	s := NewSandbox()
	ctx := context.Background()
	req := ports.GatewayRequest{IdempotencyKey: "pay-1", AmountMinor: 100}

	first, err := s.CreateAuthorization(ctx, req)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	again, err := s.CreateAuthorization(ctx, req)
	if err != nil {
		t.Fatalf("authorize again: %v", err)
	}
	if first.ExternalID != again.ExternalID {
		t.Fatalf("repeated key should return the same result")
	}
	if _, err := s.TransferFunds(ctx, req); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if s.CallsFor(OpAuthorize) != 1 || s.CallsFor(OpTransfer) != 1 || len(s.Calls()) != 2 {
		t.Fatalf("unexpected calls %+v", s.Calls())
	}
}

func TestSandboxFailNextAffectsOneCall(t *testing.T) {
	t.Parallel()
	s := NewSandbox()
	ctx := context.Background()
	boom := errors.New("processor unavailable")
	s.FailNext(OpDebit, boom)

	req := ports.GatewayRequest{IdempotencyKey: "dbt-1", AmountMinor: 5000}
	if _, err := s.ChargeByGatewayDebit(ctx, req); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if _, err := s.ChargeByGatewayDebit(ctx, req); err != nil {
		t.Fatalf("second debit should succeed: %v", err)
	}
	if s.CallsFor(OpDebit) != 1 {
		t.Fatalf("failed call should not be recorded")
	}
}

func TestSandboxCancelRequiresAuthorization(t *testing.T) {
	t.Parallel()
	s := NewSandbox()
	if _, err := s.CancelAuthorization(context.Background(), ports.GatewayRequest{IdempotencyKey: "c"}); err == nil {
		t.Fatalf("expected missing authorization error")
	}
}
