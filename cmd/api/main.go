package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/druginsight-api/internal/api/http"
	"github.com/spec-kit/druginsight-api/internal/api/http/handlers"
	"github.com/spec-kit/druginsight-api/internal/auth"
	"github.com/spec-kit/druginsight-api/internal/config"
	"github.com/spec-kit/druginsight-api/internal/events"
	"github.com/spec-kit/druginsight-api/internal/observability"
	"github.com/spec-kit/druginsight-api/internal/persistence"
	"github.com/spec-kit/druginsight-api/internal/repository"
	"github.com/spec-kit/druginsight-api/internal/service"
	"github.com/spec-kit/druginsight-api/internal/worker"
)

const (
	shutdownTimeout  = 10 * time.Second
	usageQueueBuffer = 256
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry, registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Configured() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	dispatcher := events.NewInMemoryDispatcher()

	var (
		userRepo repository.UserRepository
		keyRepo  repository.APIKeyRepository
		keyStore auth.APIKeyStore
	)
	if pg.Configured() {
		userRepo = repository.NewUserRepository(pg.PoolHandle())
		keyRepo = repository.NewAPIKeyRepository(pg.PoolHandle())
		keyStore = keyRepo
	}

	core, err := auth.NewCore(ctx, *cfg, auth.CoreDependencies{
		APIKeys:    keyStore,
		Dispatcher: dispatcher,
		Recorder:   metrics,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to build auth core", zap.Error(err))
	}
	logger.Info("authentication configured", zap.Strings("methods", core.Resolver.Methods()))

	authDeps := service.AuthDependencies{
		UserRepo:   userRepo,
		Hasher:     core.Hasher,
		Tokens:     core.Tokens,
		Dispatcher: dispatcher,
		Recorder:   metrics,
		Logger:     logger,
	}
	if redis.Configured() {
		authDeps.RevocationRepo = repository.NewTokenRevocationRepository(redis.Client)
	}
	if core.Cognito != nil {
		authDeps.Federated = core.Cognito
	}
	authService := service.NewAuthService(cfg.Auth, authDeps)

	service.NewAuditService(dispatcher, logger).RegisterHandlers()

	routes := httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:    handlers.NewAuthHandler(authService),
		Gate:    auth.NewGate(core.Resolver, cfg.Auth.PublicRoutes, logger),
		Metrics: metrics,
	}

	var usageWorker *worker.APIKeyUsageWorker
	if pg.Configured() {
		userService := service.NewUserService(userRepo, core.Hasher, logger)
		keyService := service.NewAPIKeyService(keyRepo, userRepo, core.Hasher, dispatcher, logger)
		routes.Users = handlers.NewUsersHandler(userService, keyService)
		routes.Admin = handlers.NewAdminHandler(userService)

		usageWorker = worker.NewAPIKeyUsageWorker(keyRepo, logger, usageQueueBuffer)
		usageWorker.Register(dispatcher)
		usageWorker.Start(ctx)
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:    logger,
		Metrics:   metrics,
		Timeout:   cfg.App.RequestTimeout(),
		CORS:      cfg.CORS,
		RateLimit: cfg.RateLimit,
		Redis:     redis.Client,
	})
	httptransport.RegisterRoutes(app, routes)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if usageWorker != nil {
		usageWorker.Stop()
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
