package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"logistics-backend/internal/logger"
)

// Client is nil when Redis is not configured or unreachable; every helper is a no-op then.
var Client *redis.Client

const DashboardSummaryKey = "dashboard:summary"

// Init connects to Redis. A failed ping disables caching instead of failing startup.
func Init(ctx context.Context, addr, password string) {
	if addr == "" {
		logger.Logger.Info().Msg("REDIS_ADDR not set, caching disabled")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Logger.Warn().
			Err(err).
			Str("redis_addr", addr).
			Msg("failed to connect to Redis, caching disabled")
		_ = client.Close()
		return
	}

	logger.Logger.Info().Str("redis_addr", addr).Msg("connected to Redis")
	Client = client
}

// GetJSON decodes a cached value into dst. It reports false on a miss or any error.
func GetJSON(ctx context.Context, key string, dst any) bool {
	if Client == nil {
		return false
	}

	raw, err := Client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn(ctx).Err(err).Str("cache_key", key).Msg("cache read failed")
		}
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		logger.Warn(ctx).Err(err).Str("cache_key", key).Msg("cached value is not valid JSON")
		return false
	}
	return true
}

func SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if Client == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := Client.Set(ctx, key, raw, ttl).Err(); err != nil {
		logger.Warn(ctx).Err(err).Str("cache_key", key).Msg("failed to cache value")
	}
}

func Invalidate(ctx context.Context, keys ...string) {
	if Client == nil || len(keys) == 0 {
		return
	}
	if err := Client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn(ctx).Err(err).Strs("cache_keys", keys).Msg("cache invalidation failed")
	}
}

func Close() error {
	if Client == nil {
		return nil
	}
	return Client.Close()
}
