package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viralforge/appointment-payments/internal/adapters/cache"
	eventadapter "github.com/viralforge/appointment-payments/internal/adapters/events"
	"github.com/viralforge/appointment-payments/internal/adapters/gateway"
	httpadapter "github.com/viralforge/appointment-payments/internal/adapters/http"
	"github.com/viralforge/appointment-payments/internal/adapters/memory"
	"github.com/viralforge/appointment-payments/internal/adapters/postgres"
	"github.com/viralforge/appointment-payments/internal/application"
	"github.com/viralforge/appointment-payments/internal/contracts"
	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	service    *application.Service
	httpServer *http.Server
	httpErr    error
	grpcServer *grpc.Server
	healthSrv  *health.Server
	outbox     *eventadapter.OutboxWorker
	jobs       *eventadapter.JobWorker
	waitList   *eventadapter.WaitListWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	closers := []io.Closer{sqlDB}

	checks := map[string]httpadapter.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return postgres.Ping(ctx, db) },
	}
	var rateCache ports.RateCache
	if cfg.RedisURL != "" {
		redisClient, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		closers = append(closers, redisClient)
		rateCache = cache.NewRedisRateCache(redisClient)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.WarnContext(ctx, "redis not configured, using process-local rate cache",
			"module", "bootstrap", "layer", "app", "operation", "new_runtime", "outcome", "degraded")
		rateCache = memory.NewRateCache(nil)
	}

	var paymentGateway ports.PaymentGateway
	if cfg.GatewayBaseURL != "" {
		paymentGateway = gateway.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayTimeout)
	} else {
		logger.WarnContext(ctx, "gateway base url not configured, using sandbox gateway",
			"module", "bootstrap", "layer", "app", "operation", "new_runtime", "outcome", "degraded")
		paymentGateway = gateway.NewSandbox()
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		closeAll(closers)
		return nil, err
	}

	repos := postgres.NewRepositories(db)
	service := application.NewService(application.Dependencies{
		Config: application.Config{
			Currency:                   cfg.Currency,
			WaitListThreshold:          cfg.WaitListThreshold,
			ShortSlotWaitListThreshold: cfg.ShortSlotWaitListThreshold,
			AuthorizationCutoff:        cfg.AuthorizationCutoff,
			WaitListRetryInterval:      cfg.WaitListRetryInterval,
			WaitListBatchSize:          cfg.WaitListBatchSize,
			WaitListMaxAttempts:        cfg.WaitListMaxAttempts,
			RateCacheTTL:               cfg.RateCacheTTL,
			PricingCutover:             cfg.PricingCutover,
			LegacyGstCalculatedBefore:  cfg.LegacyGstCalculatedBefore,
			BusinessHours: domain.BusinessHours{
				Location:           location,
				StartHour:          cfg.StandardHoursStart,
				EndHour:            cfg.StandardHoursEnd,
				WeekendsAfterHours: cfg.WeekendsAfterHours,
			},
			GatewayTimeout: cfg.GatewayTimeout,
		},
		Tx:           repos.Tx,
		Payments:     repos.Payments,
		WaitList:     repos.WaitList,
		Rates:        repos.Rates,
		RateCache:    rateCache,
		Appointments: repos.ReadModel,
		Discounts:    repos.ReadModel,
		Gateway:      paymentGateway,
		Jobs:         repos.Outbox,
	})

	rt := &Runtime{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}

	verifier, err := httpadapter.NewAdminTokenVerifier(cfg.AdminJWTSecret, cfg.AdminJWTIssuer)
	if err != nil {
		rt.httpErr = err
	} else {
		rt.httpServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:           httpadapter.NewRouter(httpadapter.NewHandler(service, checks), verifier),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	rt.grpcServer = grpc.NewServer()
	rt.healthSrv = health.NewServer()
	healthpb.RegisterHealthServer(rt.grpcServer, rt.healthSrv)
	rt.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	publisher, consumer, brokerClosers := buildBroker(ctx, cfg, logger)
	closers = append(closers, brokerClosers...)
	rt.outbox = eventadapter.NewOutboxWorker(logger, repos.Outbox, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize, cfg.OutboxClaimTTL, cfg.OutboxMaxRetries)
	rt.jobs = eventadapter.NewJobWorker(logger, consumer, service, repos.Outbox, cfg.ConsumerPollInterval, cfg.JobMaxAttempts)
	rt.waitList = eventadapter.NewWaitListWorker(logger, service, cfg.WaitListPollInterval)
	rt.cleanupFn = func(context.Context) { closeAll(closers) }
	return rt, nil
}

// buildBroker prefers Kafka and falls back to an in-process bus so a lone
// worker still drains its own queue.
func buildBroker(ctx context.Context, cfg Config, logger *slog.Logger) (ports.EventPublisher, eventadapter.Consumer, []io.Closer) {
	logging := eventadapter.NewLoggingPublisher(logger)
	if len(cfg.KafkaBrokers) == 0 {
		bus := eventadapter.NewLocalBus(contracts.PaymentJobTypes, logging)
		return bus, bus, nil
	}

	topicByEvent := map[string]string{contracts.JobDeadLetter: cfg.KafkaTopicDeadLetter}
	for _, jobType := range contracts.PaymentJobTypes {
		topicByEvent[jobType] = cfg.KafkaTopicPaymentJobs
	}
	kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, topicByEvent)
	kafkaConsumer, conErr := eventadapter.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, []string{cfg.KafkaTopicPaymentJobs})
	if pubErr != nil || conErr != nil {
		logger.WarnContext(ctx, "kafka disabled, using in-process bus",
			"module", "bootstrap", "layer", "app", "operation", "build_broker", "outcome", "degraded",
			"error", errors.Join(pubErr, conErr))
		if kafkaPublisher != nil {
			_ = kafkaPublisher.Close()
		}
		if kafkaConsumer != nil {
			_ = kafkaConsumer.Close()
		}
		bus := eventadapter.NewLocalBus(contracts.PaymentJobTypes, logging)
		return bus, bus, nil
	}
	return kafkaPublisher, kafkaConsumer, []io.Closer{kafkaPublisher, kafkaConsumer}
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i].Close()
	}
}

// Service exposes the wired application service to tooling.
func (r *Runtime) Service() *application.Service {
	return r.service
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	if r.httpServer == nil {
		r.cleanupFn(ctx)
		return fmt.Errorf("api disabled: %w", r.httpErr)
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return err
	}
	errCh := make(chan error, 2)
	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}
	r.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.cleanupFn(context.Background())
	errCh := make(chan error, 3)

	for _, run := range []func(context.Context) error{r.outbox.Run, r.jobs.Run, r.waitList.Run} {
		go func(run func(context.Context) error) {
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}(run)
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
