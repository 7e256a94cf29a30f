package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
)

const serviceName = "M15-Appointment-Payment-Service"

type Config struct {
	Currency string
	// WaitListThreshold is how far ahead an individual appointment must start
	// before authorization is deferred to the wait list.
	WaitListThreshold time.Duration
	// ShortSlotWaitListThreshold replaces WaitListThreshold for short time slots.
	ShortSlotWaitListThreshold time.Duration
	// AuthorizationCutoff is the lead time under which a hold is captured immediately.
	AuthorizationCutoff   time.Duration
	WaitListRetryInterval time.Duration
	WaitListBatchSize     int
	// WaitListMaxAttempts bounds how often one entry is released before it is
	// dropped with a validation failure.
	WaitListMaxAttempts       int
	RateCacheTTL              time.Duration
	PricingCutover            time.Time
	LegacyGstCalculatedBefore bool
	BusinessHours             domain.BusinessHours
	GatewayTimeout            time.Duration
}

type Service struct {
	cfg          Config
	tx           ports.TxManager
	payments     ports.PaymentRepository
	waitList     ports.WaitListRepository
	rates        ports.RateRepository
	rateCache    ports.RateCache
	appointments ports.AppointmentReader
	discounts    ports.DiscountReader
	gateway      ports.PaymentGateway
	jobs         ports.JobQueue
	nowFn        func() time.Time

	preAuthorization strategyRegistry[*AuthorizationContext]
	recreate         strategyRegistry[*RecreateContext]
	cancel           strategyRegistry[*CancelContext]
	capture          strategyRegistry[*SettlementContext]
	transfer         strategyRegistry[*TransferContext]
	depositCharge    strategyRegistry[*DepositChargeContext]
}

type Dependencies struct {
	Config       Config
	Tx           ports.TxManager
	Payments     ports.PaymentRepository
	WaitList     ports.WaitListRepository
	Rates        ports.RateRepository
	RateCache    ports.RateCache
	Appointments ports.AppointmentReader
	Discounts    ports.DiscountReader
	Gateway      ports.PaymentGateway
	Jobs         ports.JobQueue
	Now          func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.Currency == "" {
		cfg.Currency = domain.DefaultCurrency
	}
	if cfg.WaitListThreshold <= 0 {
		cfg.WaitListThreshold = 7 * 24 * time.Hour
	}
	if cfg.ShortSlotWaitListThreshold <= 0 {
		cfg.ShortSlotWaitListThreshold = 2 * 24 * time.Hour
	}
	if cfg.AuthorizationCutoff <= 0 {
		cfg.AuthorizationCutoff = time.Hour
	}
	if cfg.WaitListRetryInterval <= 0 {
		cfg.WaitListRetryInterval = time.Hour
	}
	if cfg.WaitListBatchSize <= 0 {
		cfg.WaitListBatchSize = 100
	}
	if cfg.WaitListMaxAttempts <= 0 {
		cfg.WaitListMaxAttempts = 10
	}
	if cfg.RateCacheTTL <= 0 {
		cfg.RateCacheTTL = 6 * time.Hour
	}
	if cfg.BusinessHours.EndHour == 0 {
		cfg.BusinessHours = domain.DefaultBusinessHours()
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 15 * time.Second
	}
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	s := &Service{
		cfg:          cfg,
		tx:           deps.Tx,
		payments:     deps.Payments,
		waitList:     deps.WaitList,
		rates:        deps.Rates,
		rateCache:    deps.RateCache,
		appointments: deps.Appointments,
		discounts:    deps.Discounts,
		gateway:      deps.Gateway,
		jobs:         deps.Jobs,
		nowFn:        nowFn,
	}
	s.registerStrategies()
	return s
}

func appLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "application",
		"layer", "application",
	)
}

// gatewayContext detaches gateway calls from job cancellation so a stage is
// never abandoned between the gateway response and the commit.
func (s *Service) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cfg.GatewayTimeout)
}
