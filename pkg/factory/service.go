package factory

import (
	"context"
	"time"

	"github.com/akeren/go-waitlist/pkg/ratelimit"
	"github.com/go-redis/redis/v8"
)

type Cache interface {
	Ping(ctx context.Context) error
}

type RedisClientProvider interface {
	GetClient() *redis.Client
}

// RateLimiterFactory builds limiters for individual handlers. The name keeps
// each limiter's Redis keys apart from the global limiter's.
type RateLimiterFactory interface {
	CreateRateLimiter(name string) ratelimit.RateLimiter
}

type DefaultRateLimiterFactory struct {
	requests int
	window   time.Duration
	redis    *redis.Client
	logger   ratelimit.Logger
}

// NewDefaultRateLimiterFactory uses Redis when cache exposes a client and
// falls back to in-memory limiters otherwise.
func NewDefaultRateLimiterFactory(requests int, window time.Duration, cache Cache, logger ratelimit.Logger) *DefaultRateLimiterFactory {
	var redisClient *redis.Client
	if cache != nil {
		if provider, ok := cache.(RedisClientProvider); ok {
			redisClient = provider.GetClient()
		}
	}

	return &DefaultRateLimiterFactory{
		requests: requests,
		window:   window,
		redis:    redisClient,
		logger:   logger,
	}
}

func (f *DefaultRateLimiterFactory) CreateRateLimiter(name string) ratelimit.RateLimiter {
	return ratelimit.NewRateLimiter(&ratelimit.RateLimitConfig{
		Requests:  f.requests,
		Window:    f.window,
		Redis:     f.redis,
		Logger:    f.logger,
		KeyPrefix: "ratelimit:" + name + ":",
	})
}

func (f *DefaultRateLimiterFactory) UsesRedis() bool {
	return f.redis != nil
}
