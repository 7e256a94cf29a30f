package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
)

// HandleJob loads the stage context named by a queued job, picks a strategy and
// runs the stage. A strategy carried by the job must agree with the one the
// freshly loaded context selects; a disagreement is recorded as a validation
// failure and no gateway call is made.
func (s *Service) HandleJob(ctx context.Context, job contracts.JobEnvelope) (StageResult, error) {
	if err := contracts.ValidateJob(job); err != nil {
		return StageResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	switch job.JobType {
	case contracts.JobPreAuthorization:
		id, err := parseID(job.AppointmentID)
		if err != nil {
			return StageResult{}, err
		}
		pctx, err := s.LoadPaymentContextForAuthorization(ctx, id, ContextOptions{
			AdditionalBlockDuration: job.AdditionalBlockDuration,
			IsShortTimeSlot:         job.IsShortTimeSlot,
		})
		if err != nil {
			return StageResult{}, err
		}
		selected := s.SelectPreAuthorizationStrategy(pctx)
		if selected == domain.StrategyWaitListRedirect {
			return s.MakePreAuthorization(ctx, selected, pctx)
		}
		name, reason := s.preAuthorization.pick(selected, job.Strategy)
		if reason != "" {
			pctx.ValidationReason = reason
		}
		return s.MakePreAuthorization(ctx, name, pctx)

	case contracts.JobPreAuthorizationRecreate:
		oldID, err := parseID(job.AppointmentID)
		if err != nil {
			return StageResult{}, err
		}
		newID, err := parseID(job.NewAppointmentID)
		if err != nil {
			return StageResult{}, err
		}
		rctx, err := s.LoadPaymentContextForRecreate(ctx, oldID, newID, ContextOptions{IsShortTimeSlot: job.IsShortTimeSlot})
		if err != nil {
			return StageResult{}, err
		}
		name, reason := s.recreate.pick(s.SelectRecreateStrategy(rctx), job.Strategy)
		if reason != "" {
			rctx.ValidationReason = reason
		}
		return s.MakePreAuthorizationRecreate(ctx, name, rctx)

	case contracts.JobPreAuthorizationCancel:
		id, err := parseID(job.AppointmentID)
		if err != nil {
			return StageResult{}, err
		}
		cctx, err := s.LoadPaymentContextForCancel(ctx, id)
		if err != nil {
			return StageResult{}, err
		}
		name, reason := s.cancel.pick(s.SelectCancelStrategy(cctx), job.Strategy)
		if reason != "" {
			cctx.ValidationReason = reason
		}
		return s.MakePreAuthorizationCancel(ctx, name, cctx)

	case contracts.JobCaptureAndTransfer:
		id, err := parseID(job.AppointmentID)
		if err != nil {
			return StageResult{}, err
		}
		sctx, err := s.LoadPaymentContextForCapture(ctx, id)
		if err != nil {
			return StageResult{}, err
		}
		name, reason := s.capture.pick(s.SelectCaptureStrategy(sctx), job.Strategy)
		if reason != "" {
			sctx.ValidationReason = reason
		}
		return s.MakeCaptureAndTransfer(ctx, name, sctx)

	case contracts.JobTransfer:
		id, err := parseID(job.AppointmentID)
		if err != nil {
			return StageResult{}, err
		}
		tctx, err := s.LoadPaymentContextForTransfer(ctx, id)
		if err != nil {
			return StageResult{}, err
		}
		name, reason := s.transfer.pick(s.SelectTransferStrategy(tctx), job.Strategy)
		if reason != "" {
			tctx.ValidationReason = reason
		}
		return s.MakeTransfer(ctx, name, tctx)

	case contracts.JobCompanyDepositCharge:
		id, err := parseID(job.CompanyID)
		if err != nil {
			return StageResult{}, err
		}
		dctx, err := s.LoadDepositChargeContext(ctx, id)
		if err != nil {
			return StageResult{}, err
		}
		name, reason := s.depositCharge.pick(s.SelectDepositChargeStrategy(dctx), job.Strategy)
		if reason != "" {
			dctx.ValidationReason = reason
		}
		return s.ExecuteDepositCharge(ctx, name, dctx)
	}
	return StageResult{}, fmt.Errorf("%w: unsupported job type %q", domain.ErrInvalidInput, job.JobType)
}

// pick reconciles the strategy a job asks for with the one selected from the
// loaded context. Names the stage does not know are passed through so the
// lookup rejects them; a known name that disagrees with the selection yields
// the validation-failed strategy and its reason.
func (r strategyRegistry[C]) pick(selected domain.StrategyName, requested string) (domain.StrategyName, string) {
	want := domain.StrategyName(requested)
	if requested == "" || want == selected || selected == domain.StrategyValidationFailed {
		return selected, ""
	}
	if _, known := r.byName[want]; !known {
		return want, ""
	}
	return domain.StrategyValidationFailed, fmt.Sprintf("requested strategy %s does not match selected strategy %s", want, selected)
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: id %q", domain.ErrInvalidInput, raw)
	}
	return id, nil
}
