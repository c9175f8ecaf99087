package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/config"
	"github.com/JakeFAU/websearch/internal/crawler"
	"github.com/JakeFAU/websearch/internal/storage/memory"
	"github.com/JakeFAU/websearch/internal/storage/postgres"
)

// indexStore is the surface both storage drivers provide.
type indexStore interface {
	crawler.IndexWriter
	crawler.Searcher
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}

var (
	_ indexStore = (*postgres.IndexStore)(nil)
	_ indexStore = (*memory.IndexStore)(nil)
)

// openIndexStore connects to the configured driver and makes sure the schema
// exists before handing the store out.
func openIndexStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (indexStore, error) {
	var store indexStore
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory index store; data is discarded on exit")
		store = memory.NewIndexStore()
	case config.DriverPostgres:
		pg, err := postgres.NewIndexStore(ctx, postgres.IndexStoreConfig{
			DSN:      cfg.PostgresDSN(),
			Schema:   cfg.Schema,
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect index store: %w", err)
		}
		store = pg
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("index store ready", zap.String("driver", cfg.Driver), zap.String("schema", cfg.Schema))
	return store, nil
}
