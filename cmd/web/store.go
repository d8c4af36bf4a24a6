package main

import (
	"context"

	"github.com/go-faster/errors"

	"artisan-market/internal/config"
	"artisan-market/internal/storage"
)

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (storage.PersistentStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case config.BackendMemory:
		return storage.NewMemoryStore(), noop, nil
	case config.BackendRedis:
		s, err := storage.OpenRedis(ctx, cfg.RedisURL,
			storage.WithKeyPrefix("artisan:"), storage.WithTTL(cfg.CartTTL))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendSQLite:
		s, err := storage.OpenSQL(ctx, storage.DialectSQLite, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendPostgres:
		s, err := storage.OpenSQL(ctx, storage.DialectPostgres, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, errors.Wrapf(config.ErrInvalidConfig, "unknown store backend %q", cfg.StoreBackend)
}
