// Package store selects the persistent state backend.
package store

import (
	"context"
	"fmt"
	"io"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dtroode/jobboard-client/internal/config"
	"github.com/dtroode/jobboard-client/internal/logger"
	"github.com/dtroode/jobboard-client/internal/model"
	"github.com/dtroode/jobboard-client/internal/store/file"
	"github.com/dtroode/jobboard-client/internal/store/memory"
	"github.com/dtroode/jobboard-client/internal/store/postgres"
	"github.com/dtroode/jobboard-client/internal/store/redis"
)

// Backend names accepted in configuration.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open creates the store configured by cfg. The returned closer releases
// backend connections.
func Open(ctx context.Context, cfg config.Store, logger *logger.Logger) (model.Store, io.Closer, error) {
	logger.Debug("Store: opening backend", "backend", cfg.Backend, "profile", cfg.Profile)

	switch cfg.Backend {
	case BackendMemory:
		return memory.New(), nopCloser{}, nil
	case BackendFile:
		s, err := file.New(cfg.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open file store: %w", err)
		}
		return s, nopCloser{}, nil
	case BackendRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s := redis.New(client, cfg.Profile, cfg.EphemeralTTL)
		return s, s, nil
	case BackendPostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseDSN, cfg.Profile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
