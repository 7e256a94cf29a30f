package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/viralforge/appointment-payments/internal/ports"
)

// HTTPGateway talks to the payment processor's JSON API. Every request carries
// an Idempotency-Key header so the processor can collapse retries.
type HTTPGateway struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type gatewayRequestBody struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Account     string            `json:"account,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type gatewayResponseBody struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// StatusError is a non-2xx answer from the processor.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway status %d", e.StatusCode)
}

func (g *HTTPGateway) ChargeByGatewayDebit(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	return g.do(ctx, "/v1/debits", req)
}

func (g *HTTPGateway) CreateAuthorization(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	return g.do(ctx, "/v1/authorizations", req)
}

func (g *HTTPGateway) CaptureAuthorization(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	if req.ExternalID == "" {
		return ports.GatewayResult{}, fmt.Errorf("capture requires authorization id")
	}
	return g.do(ctx, "/v1/authorizations/"+req.ExternalID+"/capture", req)
}

func (g *HTTPGateway) CancelAuthorization(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	if req.ExternalID == "" {
		return ports.GatewayResult{}, fmt.Errorf("cancel requires authorization id")
	}
	return g.do(ctx, "/v1/authorizations/"+req.ExternalID+"/cancel", req)
}

func (g *HTTPGateway) TransferFunds(ctx context.Context, req ports.GatewayRequest) (ports.GatewayResult, error) {
	return g.do(ctx, "/v1/transfers", req)
}

func (g *HTTPGateway) do(ctx context.Context, path string, req ports.GatewayRequest) (ports.GatewayResult, error) {
	if req.IdempotencyKey == "" {
		return ports.GatewayResult{}, fmt.Errorf("idempotency key is required")
	}
	body, err := json.Marshal(gatewayRequestBody{
		Amount:      req.AmountMinor,
		Currency:    strings.ToLower(req.Currency),
		Account:     req.AccountRef,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return ports.GatewayResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return ports.GatewayResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if g.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	resp, err := g.HTTP.Do(httpReq)
	if err != nil {
		return ports.GatewayResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ports.GatewayResult{}, err
	}
	var decoded gatewayResponseBody
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil && resp.StatusCode < 300 {
			return ports.GatewayResult{}, fmt.Errorf("decode gateway response: %w", err)
		}
	}
	if resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		if decoded.Error != nil {
			statusErr.Code = decoded.Error.Code
			statusErr.Message = decoded.Error.Message
		}
		return ports.GatewayResult{}, statusErr
	}
	if decoded.ID == "" {
		return ports.GatewayResult{}, fmt.Errorf("gateway response missing id")
	}
	return ports.GatewayResult{ExternalID: decoded.ID, Status: decoded.Status}, nil
}
