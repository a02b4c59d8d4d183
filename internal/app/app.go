// Package app assembles the queue engine from configuration. The HTTP server
// and the operator CLI share it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/walkup-queue/internal/config"
	"github.com/spec-kit/walkup-queue/internal/events"
	"github.com/spec-kit/walkup-queue/internal/observability"
	"github.com/spec-kit/walkup-queue/internal/persistence"
	"github.com/spec-kit/walkup-queue/internal/repository"
	"github.com/spec-kit/walkup-queue/internal/repository/sqlite"
	"github.com/spec-kit/walkup-queue/internal/service"
)

const hubBuffer = 16

// Pinger is a dependency readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores holds the repositories of the configured backend.
type Stores struct {
	Tickets    repository.TicketRepository
	Identities repository.IdentityRepository
	Probes     map[string]Pinger
	closers    []func()
}

// OpenStores connects the backend named by cfg.Store.Driver.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	stores := &Stores{Probes: map[string]Pinger{}}
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		stores.Tickets = repository.NewTicketRepository(pg.Pool)
		stores.Identities = repository.NewIdentityRepository(pg.Pool)
		stores.Probes["postgres"] = pg
		stores.closers = append(stores.closers, pg.Close)
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite store", zap.String("path", store.Path()))
		stores.Tickets = sqlite.NewTicketRepository(store)
		stores.Identities = sqlite.NewIdentityRepository(store)
		stores.Probes["sqlite"] = store
		stores.closers = append(stores.closers, func() { _ = store.Close() })
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
	return stores, nil
}

// Close releases every backend connection.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Engine is the wired set of services.
type Engine struct {
	Stores         *Stores
	Metrics        *observability.Metrics
	Hub            *events.Hub
	Redis          *persistence.Redis
	RedisPublisher *events.RedisPublisher
	Presenter      *service.Presenter
	Broadcaster    *service.Broadcaster
	Queue          *service.QueueService
	Imports        *service.ImportService
	Auth           *service.AuthService
}

// NewEngine wires services over stores. Redis is optional; without it
// snapshots reach only this process's displays.
func NewEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger, stores *Stores) (*Engine, error) {
	location, err := cfg.Queue.Location()
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		Stores:  stores,
		Metrics: observability.NewMetrics(),
		Hub:     events.NewHub(hubBuffer),
	}

	publisher := events.Fanout{engine.Hub}
	if rdb := persistence.NewRedis(ctx, cfg.Redis, logger); rdb != nil {
		engine.Redis = rdb
		engine.RedisPublisher = events.NewRedisPublisher(rdb.Client, cfg.Queue.TopicPrefix)
		publisher = append(publisher, engine.RedisPublisher)
		stores.Probes["redis"] = rdb
		stores.closers = append(stores.closers, rdb.Close)
	}

	engine.Presenter = service.NewPresenter(stores.Identities)
	engine.Broadcaster = service.NewBroadcaster(service.BroadcasterDependencies{
		TicketRepo: stores.Tickets,
		Presenter:  engine.Presenter,
		Publisher:  publisher,
		Logger:     logger,
		Metrics:    engine.Metrics,
	})
	engine.Queue = service.NewQueueService(service.QueueDependencies{
		TicketRepo:   stores.Tickets,
		IdentityRepo: stores.Identities,
		Broadcaster:  engine.Broadcaster,
		Metrics:      engine.Metrics,
		Logger:       logger,
		Location:     location,
	})
	engine.Imports = service.NewImportService(service.ImportDependencies{
		TicketRepo:   stores.Tickets,
		IdentityRepo: stores.Identities,
		Metrics:      engine.Metrics,
		Logger:       logger,
		Location:     location,
	})
	engine.Auth = service.NewAuthService(cfg.Auth, service.AuthDependencies{
		IdentityRepo: stores.Identities,
		Logger:       logger,
	})
	return engine, nil
}
