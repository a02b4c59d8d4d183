package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/walkup-queue/internal/api/http"
	"github.com/spec-kit/walkup-queue/internal/api/http/handlers"
	"github.com/spec-kit/walkup-queue/internal/app"
	"github.com/spec-kit/walkup-queue/internal/auth"
	"github.com/spec-kit/walkup-queue/internal/config"
	"github.com/spec-kit/walkup-queue/internal/observability"
	"github.com/spec-kit/walkup-queue/internal/service"
	"github.com/spec-kit/walkup-queue/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer stores.Close()

	engine, err := app.NewEngine(ctx, cfg, logger, stores)
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}

	if cfg.Queue.SeedIdentities {
		created, err := engine.Auth.Seed(ctx, service.BaselineIdentities)
		if err != nil {
			logger.Fatal("failed to seed identities", zap.Error(err))
		}
		logger.Info("identity roster seeded", zap.Int("created", created))
	}

	go worker.NewDisplayRelay(engine.RedisPublisher, engine.Hub, logger).Start(ctx)

	authMiddleware := auth.NewAuthMiddleware(engine.Auth.TokenManager(), stores.Identities)

	probes := make(map[string]handlers.Pinger, len(stores.Probes))
	for name, probe := range stores.Probes {
		probes[name] = probe
	}

	fiberApp := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.Queue.ImportMaxBytes + 1<<20,
	})
	httptransport.RegisterMiddlewares(fiberApp, logger, engine.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(fiberApp, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, probes),
		Metrics:        handlers.NewMetricsHandler(engine.Metrics, engine.Hub),
		Auth:           handlers.NewAuthHandler(engine.Auth),
		Tickets:        handlers.NewTicketsHandler(engine.Queue, engine.Imports, engine.Presenter, cfg.Queue.ImportMaxBytes),
		Display:        handlers.NewDisplayHandler(engine.Hub, engine.Broadcaster, logger),
		Identities:     handlers.NewIdentityHandler(stores.Identities),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := fiberApp.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = fiberApp.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
