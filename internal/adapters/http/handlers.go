package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/application"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		logHTTPOperationError(r.Context(), "readyz", http.StatusServiceUnavailable, "NOT_READY", "dependency check failed", nil)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "error",
			"code":   "NOT_READY",
			"checks": failed,
		})
		return
	}
	writeMessage(w, http.StatusOK, "ready")
}

func appointmentIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "appointment_id"))
	if err != nil {
		return uuid.Nil, domain.ErrInvalidInput
	}
	return id, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.ErrInvalidInput
	}
	return n, nil
}

type paymentContextResponse struct {
	AppointmentID      uuid.UUID                 `json:"appointment_id"`
	Strategy           domain.StrategyName       `json:"strategy"`
	Operation          domain.PaymentOperation   `json:"operation"`
	IsCorporate        bool                      `json:"is_corporate"`
	IsWaitListRedirect bool                      `json:"is_wait_list_redirect"`
	Timing             application.TimingFlags   `json:"timing"`
	Prices             *domain.PaymentPrices     `json:"prices,omitempty"`
	Deposit            *domain.DepositAssessment `json:"deposit,omitempty"`
	ExistingPaymentID  *uuid.UUID                `json:"existing_payment_id,omitempty"`
	ValidationReason   string                    `json:"validation_reason,omitempty"`
}

// paymentContext previews what the pre-authorization stage would do without running it.
func (h *Handler) paymentContext(w http.ResponseWriter, r *http.Request) {
	id, err := appointmentIDParam(r)
	if err != nil {
		writeValidationError(r.Context(), w, "payment_context", err)
		return
	}
	additional, err := queryInt(r, "additional_block_duration")
	if err != nil {
		writeValidationError(r.Context(), w, "payment_context", err)
		return
	}
	pctx, err := h.service.LoadPaymentContextForAuthorization(r.Context(), id, application.ContextOptions{
		AdditionalBlockDuration: additional,
		IsShortTimeSlot:         r.URL.Query().Get("is_short_time_slot") == "true",
	})
	if err != nil {
		writeMappedError(r.Context(), w, "payment_context", err)
		return
	}
	resp := paymentContextResponse{
		AppointmentID:      id,
		Strategy:           h.service.SelectPreAuthorizationStrategy(pctx),
		Operation:          pctx.Operation,
		IsCorporate:        pctx.IsCorporate,
		IsWaitListRedirect: pctx.IsWaitListRedirect,
		Timing:             pctx.Timing,
		Prices:             pctx.Prices,
		Deposit:            pctx.Deposit,
		ValidationReason:   pctx.ValidationReason,
	}
	if pctx.ExistingPayment != nil {
		resp.ExistingPaymentID = &pctx.ExistingPayment.ID
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	id, err := appointmentIDParam(r)
	if err != nil {
		writeValidationError(r.Context(), w, "quote", err)
		return
	}
	additional, err := queryInt(r, "additional_block_duration")
	if err != nil {
		writeValidationError(r.Context(), w, "quote", err)
		return
	}
	prices, err := h.service.QuoteAppointment(r.Context(), id, additional)
	if err != nil {
		writeMappedError(r.Context(), w, "quote", err)
		return
	}
	writeSuccess(w, http.StatusOK, prices)
}

func (h *Handler) putRate(w http.ResponseWriter, r *http.Request) {
	var rate domain.Rate
	if err := decodeBody(r, &rate); err != nil {
		writeValidationError(r.Context(), w, "put_rate", err)
		return
	}
	if rate.ID == uuid.Nil {
		rate.ID = uuid.New()
	}
	if err := h.service.UpdateRate(r.Context(), rate); err != nil {
		writeMappedError(r.Context(), w, "put_rate", err)
		return
	}
	httpLogger().InfoContext(r.Context(), "rate updated",
		"operation", "put_rate",
		"outcome", "success",
		"rate_tuple", rate.Tuple().Key(),
		"actor", subjectFromContext(r.Context()),
		"request_id", requestIDFromContext(r.Context()),
	)
	writeSuccess(w, http.StatusOK, rate)
}

type invalidateRatesRequest struct {
	Tuple *domain.RateTuple `json:"tuple,omitempty"`
}

// invalidateRates drops one tuple, or the whole cache when the body is empty.
func (h *Handler) invalidateRates(w http.ResponseWriter, r *http.Request) {
	var req invalidateRatesRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeValidationError(r.Context(), w, "invalidate_rates", err)
			return
		}
	}
	if req.Tuple != nil {
		if err := req.Tuple.Validate(); err != nil {
			writeValidationError(r.Context(), w, "invalidate_rates", err)
			return
		}
	}
	if err := h.service.InvalidateRates(r.Context(), req.Tuple); err != nil {
		writeMappedError(r.Context(), w, "invalidate_rates", err)
		return
	}
	writeMessage(w, http.StatusOK, "rates invalidated")
}

// enqueueJob lets operators replay a stage through the durable queue.
func (h *Handler) enqueueJob(w http.ResponseWriter, r *http.Request) {
	var job contracts.JobEnvelope
	if err := decodeBody(r, &job); err != nil {
		writeValidationError(r.Context(), w, "enqueue_job", err)
		return
	}
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if err := contracts.ValidateJob(job); err != nil {
		writeValidationError(r.Context(), w, "enqueue_job", err)
		return
	}
	if err := h.service.EnqueueJob(r.Context(), job); err != nil {
		writeMappedError(r.Context(), w, "enqueue_job", err)
		return
	}
	writeSuccess(w, http.StatusAccepted, map[string]any{"job_id": job.JobID, "job_type": job.JobType})
}
