package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridecore/internal/app"
	"ridecore/internal/config"
	"ridecore/internal/events"
	"ridecore/internal/gateway"
	"ridecore/internal/handler"
	"ridecore/internal/logging"
	"ridecore/internal/maps"
	"ridecore/internal/notify"
	"ridecore/internal/observability"
	"ridecore/internal/realtime"
	internalRedis "ridecore/internal/redis"
	"ridecore/internal/repository/postgres"
	"ridecore/internal/service"
	"ridecore/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic comes first so the database and Redis clients are instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("new relic disabled", "error", err)
			nrApp = nil
		} else {
			logger.Info("new relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Error("connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := wire(runCtx, db, redisClient, nrApp, cfg, logger)
	if err != nil {
		logger.Error("wire services", "error", err)
		os.Exit(1)
	}
	defer w.close()

	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		w.pool.Run(runCtx)
	}()
	go func() {
		defer background.Done()
		w.sweep.Run(runCtx)
	}()

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-runCtx.Done()
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := w.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	background.Wait()
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// wired holds what main runs and closes.
type wired struct {
	server *http.Server
	pool   *tasks.Pool
	sweep  *service.SweepService
	closer []func() error
}

func (w *wired) close() {
	for _, c := range w.closer {
		_ = c()
	}
}

// wire builds the stores, collaborators, services and HTTP server.
func wire(ctx context.Context, db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, logger *slog.Logger) (*wired, error) {
	w := &wired{}

	// Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	ruleCache := internalRedis.NewRuleCache(redisClient, 0)
	jobQueue := internalRedis.NewJobQueue(redisClient)

	store := postgres.NewStore(db, cfg.Ledger.LockTimeout)

	// Collaborators: each falls back to a local implementation when unconfigured.
	var notifier service.Notifier = notify.NewLogNotifier(logger)
	if cfg.Firebase.ProjectID != "" {
		fcm, err := notify.NewFCMNotifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile, logger)
		if err != nil {
			return nil, err
		}
		notifier = fcm
	}

	var paymentGateway service.PaymentGateway = gateway.NewMockGateway(cfg.Stripe.SigningSecret)
	if cfg.Stripe.APIKey != "" {
		paymentGateway = gateway.NewStripeGateway(cfg.Stripe.APIKey, cfg.Stripe.SigningSecret, cfg.Ledger.Currency)
	}

	var publisher service.EventPublisher = events.Discard{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.RideEventTopic)
		w.closer = append(w.closer, kp.Close)
		publisher = kp
	}

	distances := maps.Fallback{Logger: logger}
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			return nil, err
		}
		distances.Primary = routes
	}

	hub := realtime.NewHub(logger)

	// Services.
	ledgerService := service.NewLedgerService(store, logger)
	rules := service.NewRuleSource(store.Repos().Rules, ruleCache, logger)
	fareService := service.NewFareService(rules, cfg.Dispatch.StrictFareRules)
	incentiveService := service.NewIncentiveService(store, rules, ledgerService, logger)
	matchingService := service.NewMatchingService(store.Repos().People, cfg.Dispatch.SearchRadiusKm)
	notificationService := service.NewNotificationService(notifier, logger)
	paymentService := service.NewPaymentService(store, ledgerService, paymentGateway, logger)
	dispatchService := service.NewDispatchService(
		store, fareService, incentiveService, matchingService, ledgerService,
		notificationService, paymentGateway, distances, jobQueue, publisher, logger,
	)
	rideService := service.NewRideService(
		store, paymentService, ledgerService, incentiveService, matchingService,
		notificationService, lockStore, publisher,
		service.RideConfig{
			RequireOTP: cfg.Dispatch.RequireOTP,
			PendingTTL: cfg.Dispatch.PendingTTL,
			SweepBatch: cfg.Dispatch.SweepBatch,
		},
		logger,
	)
	driverService := service.NewDriverService(store, locationStore, hub, logger)
	peopleService := service.NewPeopleService(store.Repos().People)

	// Background work.
	w.pool = tasks.NewPool(jobQueue, tasks.PoolConfig{
		Workers:      cfg.Dispatch.Workers,
		PollInterval: cfg.Dispatch.PollInterval,
		MaxAttempts:  cfg.Dispatch.MaxJobAttempts,
		BaseBackoff:  cfg.Dispatch.JobBackoff,
	}, logger)
	w.pool.Observe(func(kind tasks.Kind, outcome tasks.Outcome) {
		observability.JobsProcessed.WithLabelValues(string(kind), string(outcome)).Inc()
	})
	service.RegisterJobs(w.pool, jobQueue, dispatchService, incentiveService, cfg.Dispatch.IncentiveReset, logger)
	if cfg.Dispatch.IncentiveReset > 0 {
		if err := jobQueue.Enqueue(ctx, service.IncentiveResetJob(time.Now().Add(cfg.Dispatch.IncentiveReset))); err != nil {
			logger.Warn("schedule incentive reset failed", "error", err)
		}
	}
	w.sweep = service.NewSweepService(rideService, cfg.Dispatch.SweepInterval, logger)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	router := app.NewRouter(app.RouterDeps{
		RideHandler:    handler.NewRideHandler(dispatchService, rideService, paymentService),
		DriverHandler:  handler.NewDriverHandler(driverService, matchingService, paymentService, hub),
		WalletHandler:  handler.NewWalletHandler(ledgerService),
		UserHandler:    handler.NewUserHandler(peopleService),
		PaymentHandler: handler.NewPaymentHandler(paymentService),
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		MetricsPath:    metricsPath,
		Logger:         logger,
	})

	w.server = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return w, nil
}
