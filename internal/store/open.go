package store

import (
	"context"
	"fmt"

	"github.com/ashureev/logoforge/internal/config"
)

// Open returns the repository selected by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config) (Repository, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		return NewSQLite(cfg.Store.DBPath)
	case config.BackendPostgres:
		return NewPostgres(ctx, cfg.Store.PostgresDSN)
	case config.BackendRedis:
		return NewRedis(RedisConfig{
			Addr:      cfg.Store.RedisAddr,
			Password:  cfg.Store.RedisPassword,
			DB:        cfg.Store.RedisDB,
			Retention: cfg.Session.Retention,
		}), nil
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
