package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-redis/redis/v8"
)

const pingTimeout = 5 * time.Second

// Config addresses a Redis server either by URL (redis:// or rediss://) or
// by host and port. URL wins when both are set.
type Config struct {
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
}

func (cfg *Config) options() (*redis.Options, error) {
	if cfg == nil {
		return nil, errors.New("redis: config is required")
	}

	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		return opts, nil
	}

	if cfg.Host == "" {
		return nil, errors.New("redis: host is required")
	}
	port := cfg.Port
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}, nil
}

// RedisCache owns the shared Redis client. The distributed rate limiter
// borrows it through GetClient.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects and pings once; an unreachable server is an error.
func NewRedisCache(cfg *Config) (*RedisCache, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}

	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetClient() *redis.Client {
	return c.client
}
