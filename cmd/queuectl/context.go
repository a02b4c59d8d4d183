package main

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/walkup-queue/internal/app"
	"github.com/spec-kit/walkup-queue/internal/config"
	"github.com/spec-kit/walkup-queue/internal/observability"
)

type commandContext struct {
	logLevel *string
}

func newCommandContext(logLevel *string) *commandContext {
	return &commandContext{logLevel: logLevel}
}

func (c *commandContext) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if c.logLevel != nil && strings.TrimSpace(*c.logLevel) != "" {
		cfg.Logger.Level = *c.logLevel
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// withEngine opens the configured store, wires the services and runs fn.
func (c *commandContext) withEngine(ctx context.Context, fn func(cfg *config.Config, engine *app.Engine) error) error {
	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	engine, err := app.NewEngine(ctx, cfg, logger, stores)
	if err != nil {
		return err
	}
	return fn(cfg, engine)
}
