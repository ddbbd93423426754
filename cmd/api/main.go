package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backoffice/internal/app"
	"github.com/noah-isme/backoffice/internal/audit"
	"github.com/noah-isme/backoffice/internal/auth"
	"github.com/noah-isme/backoffice/internal/channel"
	"github.com/noah-isme/backoffice/internal/command"
	"github.com/noah-isme/backoffice/internal/config"
	"github.com/noah-isme/backoffice/internal/events"
	"github.com/noah-isme/backoffice/internal/health"
	"github.com/noah-isme/backoffice/internal/jobs"
	"github.com/noah-isme/backoffice/internal/method"
	"github.com/noah-isme/backoffice/internal/note"
	"github.com/noah-isme/backoffice/internal/obs"
	"github.com/noah-isme/backoffice/internal/order"
	"github.com/noah-isme/backoffice/internal/payment"
	"github.com/noah-isme/backoffice/internal/quote"
	"github.com/noah-isme/backoffice/internal/ratelimit"
	"github.com/noah-isme/backoffice/internal/security"
	"github.com/noah-isme/backoffice/internal/shipment"
	"github.com/noah-isme/backoffice/internal/store"
	"github.com/noah-isme/backoffice/internal/tag"
	"github.com/noah-isme/backoffice/internal/taxrate"
	"github.com/noah-isme/backoffice/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "backoffice")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "backoffice-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := app.InitDatabase(ctx, cfg, "backoffice-api")
	if err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("initialise database")
	}
	defer pool.Close()

	migrationsURL := envOrDefault("MIGRATIONS_URL", "file://migrations")
	if err := app.RunMigrations(migrationsURL, cfg.DatabaseURL); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("run migrations")
	}

	redisClient, err := app.InitRedis(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

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
		Store:     store.EventStore{DB: pool},
		Scheduler: jobClient,
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
	}

	validate := validator.New()
	documents := store.DocumentStore{DB: pool}
	methods := store.MethodStore{DB: pool}
	payments := store.PaymentStore{DB: pool}

	quoteSvc := &quote.Service{Documents: documents, Events: bus, DefaultCurrency: cfg.DefaultCurrency}
	orderSvc := &order.Service{Documents: documents, Methods: methods, Payments: payments, Events: bus}
	paymentSvc := &payment.Service{Payments: payments, Orders: orderSvc, Events: bus}
	shipmentSvc := &shipment.Service{Shipments: store.ShipmentStore{DB: pool}, Orders: orderSvc, Events: bus}
	channelSvc := &channel.Service{Channels: store.ChannelStore{DB: pool}, Validate: validate}
	taxRateSvc := &taxrate.Service{Rates: store.TaxRateStore{DB: pool}, Validate: validate}
	methodSvc := &method.Service{Methods: methods, Validate: validate}
	noteSvc := &note.Service{Notes: store.NoteStore{DB: pool}, Documents: documents}
	tagSvc := &tag.Service{Tags: store.TagStore{DB: pool}, Documents: documents}

	auditSvc := audit.Service{Store: store.AuditStore{DB: pool}, Enabled: cfg.AuditEnabled}
	registry := command.NewRegistry()
	for _, defs := range [][]command.Definition{quoteSvc.Commands(), orderSvc.Commands(), paymentSvc.Commands()} {
		for _, def := range defs {
			registry.MustRegister(def)
		}
	}
	executor := &command.Executor{Registry: registry, Audit: auditSvc, Logger: logger}

	authService, err := auth.NewService(auth.Config{
		Secret:    cfg.JWTSecret,
		Issuer:    envOrDefault("JWT_ISSUER", ""),
		Audience:  envOrDefault("JWT_AUDIENCE", ""),
		ClockSkew: 30 * time.Second,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authMiddleware := auth.Middleware{Service: authService}

	rateLimiter, err := ratelimit.New(redisClient, cfg.RateLimitPerMinute)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	quoteHandler := &quote.Handler{Svc: quoteSvc, Exec: executor}
	orderHandler := &order.Handler{Svc: orderSvc, Exec: executor, Recalcs: jobClient}
	paymentHandler := &payment.Handler{Svc: paymentSvc, Exec: executor}
	shipmentHandler := &shipment.Handler{Svc: shipmentSvc}
	channelHandler := &channel.Handler{Svc: channelSvc}
	taxRateHandler := &taxrate.Handler{Svc: taxRateSvc}
	noteHandler := &note.Handler{Svc: noteSvc}
	tagHandler := &tag.Handler{Svc: tagSvc}
	auditHandler := &command.Handler{Audit: auditSvc, Exec: executor, ListMaxLimit: int32(cfg.AuditListMaxLimit)}
	shippingMethodHandler := &method.Handler{Svc: methodSvc, Kind: store.MethodKindShipping}
	paymentMethodHandler := &method.Handler{Svc: methodSvc, Kind: store.MethodKindPayment}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: envBool("SECURE_HEADERS", true)}.Middleware)
	r.Use(security.BodyLimit{Max: envInt64("SECURE_MAX_BODY_BYTES", 1<<20)}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", cfg.TenantHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      health.Probes{DB: pool, Redis: redisClient},
		DBTimeout:    500 * time.Millisecond,
		RedisTimeout: 300 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	resolver := tenant.NewResolver(cfg.TenantHeader, cfg.TenantRootDomain, cfg.DefaultTenant)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(resolver.Middleware)
		v.Use(ratelimit.Middleware(rateLimiter, func(err error) {
			logger.Error().Err(err).Msg("rate limiter")
		}))
		v.Use(authMiddleware.RequireAuth)

		v.Route("/quotes", quoteHandler.Routes)
		v.Route("/orders", func(o chi.Router) {
			orderHandler.Routes(o)
			o.Route("/{orderID}/payments", paymentHandler.Routes)
			o.Route("/{orderID}/shipments", shipmentHandler.OrderRoutes)
		})
		v.Route("/shipments", shipmentHandler.Routes)
		v.Route("/channels", channelHandler.Routes)
		v.Route("/tax-rates", taxRateHandler.Routes)
		v.Route("/shipping-methods", shippingMethodHandler.Routes)
		v.Route("/payment-methods", paymentMethodHandler.Routes)
		v.Route("/notes", noteHandler.Routes)
		v.Route("/tags", tagHandler.Routes)
		v.Route("/{resourceType}/{docID}/tags", tagHandler.DocumentRoutes)
		v.Route("/audit", auditHandler.Routes)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		graceCtx, graceCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer graceCancel()
		if err := srv.Shutdown(graceCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown http server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
