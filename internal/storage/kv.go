// Package storage provides the durable key-value stores that back chat
// session persistence.
package storage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/config"
)

// KV is a string key-value store. Values are opaque to the store.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (KV, error) {
	switch cfg.Driver {
	case "", config.StorageMemory:
		logger.Info().Msg("using in-memory session storage")
		return NewMemory(), nil
	case config.StorageRedis:
		kv, err := NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "open redis storage")
		}
		logger.Info().Msg("connected to Redis session storage")
		return kv, nil
	case config.StorageSQLite:
		kv, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite storage")
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite session storage")
		return kv, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
