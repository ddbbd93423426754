package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backoffice/internal/app"
	"github.com/noah-isme/backoffice/internal/config"
	"github.com/noah-isme/backoffice/internal/events"
	"github.com/noah-isme/backoffice/internal/jobs"
	"github.com/noah-isme/backoffice/internal/lock"
	"github.com/noah-isme/backoffice/internal/obs"
	"github.com/noah-isme/backoffice/internal/order"
	"github.com/noah-isme/backoffice/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := app.InitDatabase(ctx, cfg, "backoffice-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise database")
	}
	defer pool.Close()

	redisClient, err := app.InitRedis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	documents := store.DocumentStore{DB: pool}
	eventStore := store.EventStore{DB: pool}

	asynqOpt, err := app.AsynqRedisOpt(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise task queue")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()
	jobClient := &jobs.Client{C: taskClient, Queue: cfg.RecalcQueue}

	bus := &events.Bus{
		Store:     eventStore,
		Scheduler: jobClient,
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
	}

	orderSvc := &order.Service{
		Documents: documents,
		Methods:   store.MethodStore{DB: pool},
		Payments:  store.PaymentStore{DB: pool},
		Events:    bus,
	}

	recalcHandler := &jobs.RecalcHandler{
		Orders:  orderSvc,
		Locker:  lock.Locker{R: redisClient},
		LockTTL: cfg.RecalcLockTTL,
		Logger:  logger,
	}
	dispatchNotifiers := []events.Notifier{events.LogNotifier{Logger: logger}}
	if webhookURL := envOrDefault("WEBHOOK_URL", ""); webhookURL != "" {
		timeout := time.Duration(envInt("WEBHOOK_TIMEOUT_MS", 10000)) * time.Millisecond
		dispatchNotifiers = append(dispatchNotifiers, events.NewWebhookNotifier(webhookURL, os.Getenv("WEBHOOK_SECRET"), timeout))
	}
	dispatchHandler := &jobs.DispatchHandler{
		Events:    eventStore,
		Notifiers: dispatchNotifiers,
		Batch:     int32(envInt("EVENT_DISPATCH_BATCH", 100)),
		Logger:    logger,
	}

	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{cfg.RecalcQueue: 1},
		Logger:      asynqLogger{logger: logger},
	})

	logger.Info().Msg("worker starting")
	if err := srv.Start(jobs.NewMux(recalcHandler, dispatchHandler)); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
