package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	httpadapter "clickflow/internal/adapter/http"
	"clickflow/internal/adapter/kafka"
	"clickflow/internal/adapter/memory"
	"clickflow/internal/adapter/notify"
	"clickflow/internal/adapter/postgres"
	redisadapter "clickflow/internal/adapter/redis"
	"clickflow/internal/adapter/usecase"
	"clickflow/internal/config"
	"clickflow/internal/core/attribution"
	"clickflow/internal/core/domain"
	"clickflow/internal/core/fraud"
	"clickflow/internal/core/port"
	"clickflow/internal/core/rules"
	"clickflow/internal/core/session"
	"clickflow/internal/db"
)

// main is the entry point of the clickflow service. It loads configuration,
// optionally runs database migrations, wires storage, counters and trigger
// publishing, seeds rules and pixels, then starts the HTTP server. On a
// termination signal it stops the server, ends open sessions and drains
// background workers.
func main() {
	exitCode := 1
	defer func() {
		if r := recover(); r != nil {
			panic(r)
		} else {
			os.Exit(exitCode)
		}
	}()

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return
	}

	var logger *slog.Logger
	{
		var handler slog.Handler
		level := cfg.Log.SlogLevel()
		switch cfg.Log.SlogFormat() {
		case "json":
			handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		default:
			handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		}
		logger = slog.New(handler).With(slog.String("env", cfg.Env))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var repo port.Repository
	switch cfg.Tracking.Storage {
	case "memory":
		repo = memory.NewRepository()
		logger.Warn("using in-memory storage, data is lost on restart")
	case "postgres":
		if cfg.Psql.RunMigrations {
			if err = db.Migrate(cfg.Psql.Addr.String()); err != nil {
				logger.Error("migration error", slog.Any("error", err))
				return
			}
			logger.Info("migrations applied successfully")
		}
		pool, err := db.NewPostgresPool(ctx, cfg.Psql)
		if err != nil {
			logger.Error("database connection error", slog.Any("error", err))
			return
		}
		defer pool.Close()
		repo = postgres.NewRepository(pool)
	default:
		logger.Error("unknown storage driver", slog.String("driver", cfg.Tracking.Storage))
		return
	}

	var counters port.SourceCounter = memory.NewSourceCounter()
	if cfg.Redis.Addr != "" {
		client, err := db.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Error("redis connection error", slog.Any("error", err))
			return
		}
		defer client.Close()
		counters = redisadapter.NewSourceCounter(client, cfg.Redis.KeyPrefix)
	}

	var publisher port.Notifier = notify.NewLogPublisher(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
		if err != nil {
			logger.Error("kafka publisher error", slog.Any("error", err))
			return
		}
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Error("kafka publisher close", slog.Any("error", err))
			}
		}()
		publisher = kp
	}
	dispatcher := notify.NewDispatcher(publisher, logger, notify.Options{
		QueueSize:     cfg.Kafka.QueueSize,
		Workers:       cfg.Kafka.Workers,
		Timeout:       cfg.Kafka.Timeout,
		MaxAttempts:   cfg.Kafka.MaxAttempts,
		RetryDelay:    cfg.Kafka.RetryDelay,
		RatePerSecond: cfg.Kafka.RatePerSecond,
	})

	pixels := memory.NewPixelRegistry()
	if cfg.Seed.File != "" {
		res, err := db.Seed(ctx, cfg.Seed.File, repo, pixels)
		if err != nil {
			logger.Error("seed error", slog.String("file", cfg.Seed.File), slog.Any("error", err))
			return
		}
		logger.Info("seed loaded", slog.Int("rules", res.Rules), slog.Int("pixels", res.Pixels))
	}

	policy := domain.FraudPolicy(cfg.Fraud.Policy)
	if policy != domain.PolicySoftFlag && policy != domain.PolicyHardBlock {
		logger.Error("unknown fraud policy", slog.String("policy", cfg.Fraud.Policy))
		return
	}
	model := domain.AttributionModel(cfg.Attribution.DefaultModel)
	if !model.Valid() {
		logger.Error("unknown attribution model", slog.String("model", cfg.Attribution.DefaultModel))
		return
	}

	store := session.NewStore(cfg.Tracking.SessionTimeout)
	sweeper := session.NewSweeper(store, repo, logger, cfg.Tracking.SweepInterval, cfg.Tracking.StoreTimeout)

	clicks := usecase.NewClickUseCase(repo, repo, counters, store, logger, cfg.Tracking.StoreTimeout)
	conversions := usecase.NewConversionUseCase(usecase.ConversionDeps{
		Repo:     repo,
		Sessions: store,
		Rules:    rules.NewEngine(),
		Attribution: attribution.NewEngine(attribution.Config{
			Lookback:      cfg.Attribution.Lookback,
			HalfLife:      cfg.Attribution.HalfLife,
			EndpointShare: cfg.Attribution.EndpointShare,
			DefaultModel:  model,
		}),
		Fraud: fraud.NewDetector(fraud.Config{
			Threshold:           cfg.Fraud.Threshold,
			VelocityLimit:       cfg.Fraud.VelocityLimit,
			VelocityWindow:      cfg.Fraud.VelocityWindow,
			FastConversionFloor: cfg.Fraud.FastConversionFloor,
			BlockedNetworks:     cfg.Fraud.BlockedNetworks,
			HighValueThreshold:  cfg.Fraud.HighValueThreshold,
			Policy:              policy,
		}),
		Notifier:     dispatcher,
		Pixels:       pixels,
		Logger:       logger,
		StoreTimeout: cfg.Tracking.StoreTimeout,
	})

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		dispatcher.Run(ctx)
	}()
	go func() {
		defer workers.Done()
		sweeper.Run(ctx)
	}()

	handler := httpadapter.NewHandler(clicks, conversions, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: handler.Router(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.Int("port", int(cfg.HTTP.Port)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case value := <-quit:
		exitCode = 128 + int(value.(syscall.Signal))
	case err = <-serverErr:
		logger.Error("server error", slog.Any("error", err))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	} else {
		logger.Info("server gracefully stopped")
	}

	if n := sweeper.Flush(shutdownCtx); n > 0 {
		logger.Info("open sessions ended", slog.Int("count", n))
	}
	cancel()
	workers.Wait()
}
