package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/custody/internal/config"
	"github.com/congo-pay/custody/internal/store"
)

// Resources are the connections a process opens at startup.
type Resources struct {
	Backend store.Backend
	// Cache is set whenever REDIS_URL is configured, whichever backend holds
	// the collections. It serves rate limiting, idempotency and events.
	Cache *redis.Client

	ownsCache bool
}

// Open connects the configured store backend and, when configured, Redis.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Resources, error) {
	res := &Resources{}

	if cfg.RedisURL != "" {
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		res.Cache = client
		res.ownsCache = true
	}

	backend, err := openBackend(ctx, cfg, res)
	if err != nil {
		if res.Cache != nil {
			res.Cache.Close()
		}
		return nil, err
	}
	res.Backend = backend
	logger.Info("store opened", slog.String("backend", backend.Name()))
	return res, nil
}

func openBackend(ctx context.Context, cfg config.Config, res *Resources) (store.Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendSQLite:
		return store.NewSQLite(ctx, cfg.SQLitePath)
	case config.BackendRedis:
		// the backend closes the shared client
		res.ownsCache = false
		return store.NewRedis(res.Cache, cfg.RedisPrefix), nil
	case config.BackendPostgres:
		pool, err := NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		backend, err := store.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Close releases every connection.
func (r *Resources) Close() error {
	var errs []error
	if r.Backend != nil {
		errs = append(errs, r.Backend.Close())
	}
	if r.ownsCache && r.Cache != nil {
		errs = append(errs, r.Cache.Close())
	}
	return errors.Join(errs...)
}
