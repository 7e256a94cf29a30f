package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/appointment-payments/internal/application"
)

// ReadinessCheck checks one dependency.
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	service *application.Service
	checks  map[string]ReadinessCheck
}

func NewHandler(service *application.Service, checks map[string]ReadinessCheck) *Handler {
	return &Handler{service: service, checks: checks}
}

// NewRouter registers the ops routes. Everything under /internal requires an admin token.
func NewRouter(handler *Handler, verifier *AdminTokenVerifier) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(adminAuthMiddleware(verifier))
		r.Get("/appointments/{appointment_id}/payment-context", handler.paymentContext)
		r.Get("/appointments/{appointment_id}/quote", handler.quote)
		r.Put("/rates", handler.putRate)
		r.Post("/rates/invalidate", handler.invalidateRates)
		r.Post("/jobs", handler.enqueueJob)
	})
	return r
}
