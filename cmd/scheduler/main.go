package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadgen_backend/internal/adapters/storage"
	"leadgen_backend/internal/email"
	"leadgen_backend/internal/events"
	"leadgen_backend/internal/forecasting"
	"leadgen_backend/internal/forecasting/cache"
	"leadgen_backend/internal/leads"
	"leadgen_backend/internal/notification"
	"leadgen_backend/internal/regions"
	"leadgen_backend/internal/scheduler"
	"leadgen_backend/platform/config"
	"leadgen_backend/platform/db"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "weeklyCron", cfg.GetWeeklyInferenceCron(), "scoringCron", cfg.GetNightlyScoringCron())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	registry, err := regions.Load(cfg.GetRegionsFile())
	if err != nil {
		log.Error("failed to load region registry", "error", err)
		panic("failed to load region registry: " + err.Error())
	}

	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Wait()

	// Operator emails for weekly impact reports and scoring failures
	notification.New(email.NewSender(cfg), cfg.GetOperatorEmails(), log).RegisterHandlers(eventBus)

	var blobs storage.BlobStore
	if cfg.IsMinIOEnabled() {
		svc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		blobs = svc
	}

	var redisClient *redis.Client
	if c, err := cache.NewRedisClient(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure()); err != nil {
		log.Warn("forecast cache disabled", "error", err)
	} else {
		redisClient = c
		defer func() { _ = redisClient.Close() }()
	}

	forecastModule, err := forecasting.NewModule(forecasting.Infra{
		Pool:     pool,
		Bus:      eventBus,
		Blobs:    blobs,
		Redis:    redisClient,
		Registry: registry,
	}, validator.New(), cfg, log)
	if err != nil {
		log.Error("failed to initialize forecasting module", "error", err)
		panic("failed to initialize forecasting module: " + err.Error())
	}

	leadsModule, err := leads.NewModule(ctx, pool, eventBus, cfg, log)
	if err != nil {
		log.Error("failed to initialize leads module", "error", err)
		panic("failed to initialize leads module: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}
	go periodic.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, scheduler.Handlers{
		Weekly:  forecastModule.WeeklyJob(),
		Trainer: forecastModule.Forecaster(),
		Scoring: leadsModule.ScoringJob(),
	}, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
