// Package main is the entry point for the codecredit-api server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jmylchreest/codecredit-api/internal/auth"
	"github.com/jmylchreest/codecredit-api/internal/config"
	"github.com/jmylchreest/codecredit-api/internal/database"
	"github.com/jmylchreest/codecredit-api/internal/executor"
	"github.com/jmylchreest/codecredit-api/internal/http/handlers"
	"github.com/jmylchreest/codecredit-api/internal/http/mw"
	"github.com/jmylchreest/codecredit-api/internal/http/routes"
	"github.com/jmylchreest/codecredit-api/internal/logging"
	"github.com/jmylchreest/codecredit-api/internal/plans"
	"github.com/jmylchreest/codecredit-api/internal/repository"
	"github.com/jmylchreest/codecredit-api/internal/service"
	"github.com/jmylchreest/codecredit-api/internal/telemetry"
	"github.com/jmylchreest/codecredit-api/internal/version"
	"github.com/jmylchreest/codecredit-api/internal/worker"
)

func main() {
	// Local development convenience; real deployments set the environment.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		}
	}

	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting codecredit-api", "build", v)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  "codecredit-api",
		Version:      v.Version,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	metrics, err := service.NewMetrics(tel.Meter())
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Object storage is optional. Keep the interfaces nil when it is off.
	var (
		objects       service.ObjectPutter
		configObjects config.ObjectGetter
	)
	s3Client, err := service.NewS3Client(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create storage client", "error", err)
		os.Exit(1)
	}
	if s3Client != nil {
		objects = s3Client
		configObjects = s3Client
	}

	catalog, err := plans.LoadCatalog(ctx, config.NewS3Loader(configObjects, cfg.StorageBucket, cfg.PlanCatalogKey, logger), logger)
	if err != nil {
		logger.Error("failed to load plan catalog", "error", err)
		os.Exit(1)
	}

	runner := executor.NewClient(executor.ClientConfig{
		BaseURL:   cfg.ExecutorURL,
		Secret:    cfg.ExecutorSecret,
		Timeout:   cfg.ExecutorTimeout,
		RPS:       float64(cfg.ExecutorRPS),
		Burst:     cfg.ExecutorBurst,
		UserAgent: v.UserAgent(),
		Logger:    logger,
	})

	svcs, err := service.NewServices(cfg, service.Deps{
		Store:   repository.NewStore(db),
		Catalog: catalog,
		Runner:  runner,
		Objects: objects,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	var verifier auth.Verifier
	switch {
	case cfg.ClerkIssuerURL != "":
		verifier = auth.NewClerkVerifier(cfg.ClerkIssuerURL)
		logger.Info("clerk authentication enabled", "issuer", cfg.ClerkIssuerURL)
	case cfg.JWTSecret != "":
		verifier = auth.NewHS256Verifier(cfg.JWTSecret, "")
		logger.Info("local token authentication enabled")
	default:
		logger.Warn("no token verifier configured, protected routes will reject every request")
	}

	sweeps := worker.New(worker.SweepJobs(svcs, cfg), worker.Config{
		Location:   cfg.Billing.Location,
		RunAtStart: true,
	}, logger)
	sweeps.Start(ctx)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default: 30 * time.Second,
		// Execution waits on the gateway, which has its own deadline.
		Extended:         cfg.ExecutorTimeout + 10*time.Second,
		ExtendedPatterns: []string{"/api/v1/executions"},
		SkipPatterns:     []string{"/metrics"},
	}))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-API-Version", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.RequestSize(1 * 1024 * 1024))
	if cfg.IPRateLimit > 0 {
		router.Use(mw.RateLimitByIP(cfg.IPRateLimit))
	}
	router.Use(mw.APIVersion(v))

	api := humachi.New(router, routes.NewHumaConfig(cfg.BaseURL))
	api.UseMiddleware(mw.HumaAuth(api, mw.HumaAuthConfig{
		Verifier: verifier,
		IsAdmin:  mw.AdminByRoleOrList(cfg.IsAdmin),
		Logger:   logger,
	}))
	api.UseMiddleware(mw.HumaUserRateLimit(cfg.ExecutionRateLimit))
	routes.Register(api, routes.NewHandlers(svcs, db, logger))

	// Webhooks verify their own signatures.
	if cfg.ClerkWebhookSecret != "" {
		clerk := handlers.NewClerkWebhookHandler(cfg.ClerkWebhookSecret, svcs.Subscription, logger)
		router.Post("/api/v1/webhooks/clerk", clerk.HandleWebhook)
		logger.Info("clerk webhook endpoint enabled")
	}
	if cfg.StripeWebhookSecret != "" {
		stripeHook := handlers.NewStripeWebhookHandler(cfg.StripeWebhookSecret, svcs.Wallet, logger)
		router.Post("/api/v1/webhooks/stripe", stripeHook.HandleWebhook)
		logger.Info("stripe webhook endpoint enabled")
	}

	router.Handle("/metrics", tel.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      otelhttp.NewHandler(router, "codecredit-api"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		// Let in-flight sweeps finish before the database closes.
		cancel()
		sweeps.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	logger.Info("starting server",
		"port", cfg.Port,
		"base_url", cfg.BaseURL,
		"plans", len(catalog.All()),
		"billing_timezone", cfg.Billing.Location.String(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
