package application

import (
	"context"
	"fmt"

	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// cancelGatewayHold voids an individual client's authorization and closes the payment.
// Payments that never reached the gateway are closed without a call.
func (s *Service) cancelGatewayHold(ctx context.Context, repos ports.TxRepositories, p *domain.Payment, stage domain.Stage) error {
	if !p.Status.IsOpen() {
		return nil
	}
	if p.UnfinishedItem() != nil {
		return fmt.Errorf("%w: payment %s", domain.ErrSettlementInFlight, p.ID)
	}
	now := s.nowFn()
	if auth := p.SucceededItem(domain.ItemAuthorization); auth != nil && auth.ExternalID != "" {
		externalID := auth.ExternalID
		gctx, cancel := s.gatewayContext(ctx)
		defer cancel()
		res, err := s.gateway.CancelAuthorization(gctx, ports.GatewayRequest{
			IdempotencyKey: gatewayKey(p.AppointmentID, stage, p.ID.String()),
			AmountMinor:    domain.ToMinorUnits(p.TotalAmount),
			Currency:       p.Currency,
			ExternalID:     externalID,
		})
		if err != nil {
			return gatewayError("cancel authorization", err)
		}
		item := p.AddItem(domain.ItemCancellation, p.TotalAmount, p.TotalGstAmount, now)
		item.ExternalID = res.ExternalID
		item.Status = domain.ItemSucceeded
	}
	p.Status = domain.PaymentCancelled
	p.UpdatedAt = now
	if err := repos.Payments.Save(ctx, p); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	return nil
}

// releaseDepositHold returns a corporate reservation to the company deposit and
// closes the payment. Post-payment obligations are simply closed.
func (s *Service) releaseDepositHold(ctx context.Context, repos ports.TxRepositories, p *domain.Payment) error {
	if !p.Status.IsOpen() {
		return nil
	}
	if p.UnfinishedItem() != nil {
		return fmt.Errorf("%w: payment %s", domain.ErrSettlementInFlight, p.ID)
	}
	now := s.nowFn()
	if p.SucceededItem(domain.ItemDepositReservation) != nil {
		if p.CompanyID == nil {
			return fmt.Errorf("%w: deposit payment %s has no company", domain.ErrValidationFailed, p.ID)
		}
		if _, err := repos.Companies.AdjustDepositBalance(ctx, *p.CompanyID, p.TotalAmount); err != nil {
			return fmt.Errorf("release deposit: %w", err)
		}
		item := p.AddItem(domain.ItemDepositRelease, p.TotalAmount, p.TotalGstAmount, now)
		item.Status = domain.ItemSucceeded
	}
	p.Status = domain.PaymentCancelled
	p.UpdatedAt = now
	if err := repos.Payments.Save(ctx, p); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	return nil
}

func openPayments(payments []*domain.Payment) []*domain.Payment {
	out := make([]*domain.Payment, 0, len(payments))
	for _, p := range payments {
		if p.Status.IsOpen() {
			out = append(out, p)
		}
	}
	return out
}

func livePayments(payments []*domain.Payment) []*domain.Payment {
	out := make([]*domain.Payment, 0, len(payments))
	for _, p := range payments {
		if p.Status != domain.PaymentCancelled && p.Status != domain.PaymentFailed {
			out = append(out, p)
		}
	}
	return out
}
