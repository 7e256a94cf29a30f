package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// Call records one request seen by the sandbox.
type Call struct {
	Operation string
	Request   ports.GatewayRequest
}

// Sandbox is an in-process gateway for local runs and tests. Repeating an
// idempotency key returns the first result without recording a new call.
type Sandbox struct {
	mu      sync.Mutex
	results map[string]ports.GatewayResult
	calls   []Call
	fail    map[string]error
}

func NewSandbox() *Sandbox {
	return &Sandbox{results: map[string]ports.GatewayResult{}, fail: map[string]error{}}
}

// FailNext makes the next call of operation return err.
func (s *Sandbox) FailNext(operation string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[operation] = err
}

func (s *Sandbox) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsFor counts recorded calls of one operation.
func (s *Sandbox) CallsFor(operation string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Operation == operation {
			n++
		}
	}
	return n
}

const (
	OpDebit     = "debit"
	OpAuthorize = "authorize"
	OpCapture   = "capture"
	OpCancel    = "cancel"
	OpTransfer  = "transfer"
)

func (s *Sandbox) ChargeByGatewayDebit(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	return s.call(ctx, OpDebit, "dbt", "succeeded", req)
}

func (s *Sandbox) CreateAuthorization(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	return s.call(ctx, OpAuthorize, "auth", "authorized", req)
}

func (s *Sandbox) CaptureAuthorization(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	if req.ExternalID == "" {
		return ports.GatewayResult{}, fmt.Errorf("capture requires authorization id")
	}
	return s.call(ctx, OpCapture, "cap", "captured", req)
}

func (s *Sandbox) CancelAuthorization(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	if req.ExternalID == "" {
		return ports.GatewayResult{}, fmt.Errorf("cancel requires authorization id")
	}
	return s.call(ctx, OpCancel, "cnl", "cancelled", req)
}

func (s *Sandbox) TransferFunds(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	return s.call(ctx, OpTransfer, "tr", "paid", req)
}

func (s *Sandbox) call(ctx context.Context, op, prefix, status string, req ports.GatewayRequest) (ports.GatewayResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.GatewayResult{}, err
	}
	if req.IdempotencyKey == "" {
		return ports.GatewayResult{}, fmt.Errorf("idempotency key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[op]; ok {
		delete(s.fail, op)
		return ports.GatewayResult{}, err
	}
	key := op + "|" + req.IdempotencyKey
	if res, ok := s.results[key]; ok {
		return res, nil
	}
	res := ports.GatewayResult{ExternalID: prefix + "_" + uuid.NewString(), Status: status}
	s.results[key] = res
	s.calls = append(s.calls, Call{Operation: op, Request: req})
	return res, nil
}
