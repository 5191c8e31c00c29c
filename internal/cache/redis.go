// Package cache wires the shared Redis client used for page caching,
// sitemap invalidation and reconcile locking.
package cache

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/storelane/storelane/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewClient returns the shared Redis client, or nil when Redis is not
// configured. Callers treat a nil client as "feature disabled".
func NewClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Named("cache").Warn("redis not configured, locking and cache invalidation disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client
}

var Module = fx.Module("cache",
	fx.Provide(NewClient),
)
