package initializers

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConnectRedis opens the rate-limit counter store. An empty URL disables the
// limiters; a failed ping downgrades to disabled instead of refusing to
// start, since the limiters fail open anyway.
func ConnectRedis(url string, logger *zap.Logger) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Error("invalid REDIS_URL, rate limiting disabled", zap.Error(err))
		return nil
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable, rate limiting disabled", zap.Error(err))
		return nil
	}
	return client
}
