// Command consumer applies driver location updates read from Kafka.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ridecore/internal/app"
	"ridecore/internal/config"
	"ridecore/internal/ingest"
	"ridecore/internal/logging"
	"ridecore/internal/observability"
	internalRedis "ridecore/internal/redis"
	"ridecore/internal/repository/postgres"
	"ridecore/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("error", "json").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)

	if len(cfg.Kafka.Brokers) == 0 {
		logger.Error("KAFKA_BROKERS is required for the location consumer")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := app.NewDatabase(startCtx, cfg.Database, nil)
	if err != nil {
		logger.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := app.NewRedisClient(startCtx, cfg.Redis, nil)
	if err != nil {
		logger.Error("connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	drivers := service.NewDriverService(
		postgres.NewStore(db, cfg.Ledger.LockTimeout),
		internalRedis.NewLocationStore(redisClient),
		nil,
		logger,
	)

	consumer := ingest.NewLocationConsumer(cfg.Kafka.Brokers, cfg.Kafka.LocationTopic, cfg.Kafka.ConsumerGroup, drivers, logger)
	consumer.Observe(func(r ingest.Result) {
		observability.LocationMessages.WithLabelValues(string(r)).Inc()
	})
	defer consumer.Close()

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			return
		}
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadTimeout: cfg.Server.ReadTimeout}
	go func() {
		logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	logger.Info("consuming driver locations",
		"topic", cfg.Kafka.LocationTopic,
		"brokers", cfg.Kafka.Brokers,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	logger.Info("consumer exited")
}
