package config

import (
	"context"
	"strconv"

	"github.com/akeren/go-waitlist/internal/log"
	pkgredis "github.com/akeren/go-waitlist/pkg/redis"
	"github.com/akeren/go-waitlist/pkg/utils"
	"github.com/go-redis/redis/v8"
)

// Cache is the optional shared Redis connection. It only backs rate limiting
// and the health check, so the service runs fine without it.
type Cache interface {
	Ping(ctx context.Context) error
	Close() error
}

// RedisClientProvider is implemented by caches that expose the underlying Redis client.
type RedisClientProvider interface {
	GetClient() *redis.Client
}

type CacheConfig struct {
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
}

// NewCacheConfig reads REDIS_URL, or REDIS_HOST with REDIS_PORT, REDIS_PASSWORD
// and REDIS_DB.
func NewCacheConfig() *CacheConfig {
	db, err := strconv.Atoi(utils.GetEnvTrimmed("REDIS_DB"))
	if err != nil || db < 0 {
		db = 0
	}

	return &CacheConfig{
		URL:      sanitizeEnv(GetValueFromEnvironmentVariable("REDIS_URL", "")),
		Host:     sanitizeEnv(GetValueFromEnvironmentVariable("REDIS_HOST", "")),
		Port:     utils.GetEnvTrimmedOrDefault("REDIS_PORT", "6379"),
		Password: GetValueFromEnvironmentVariable("REDIS_PASSWORD", ""),
		DB:       db,
	}
}

func (cc *CacheConfig) IsConfigured() bool {
	return cc.URL != "" || cc.Host != ""
}

func (cc *CacheConfig) NewCache(logger *log.Logger) (Cache, error) {
	if !cc.IsConfigured() {
		logger.Error("Cache (Redis) configuration is missing", "missing", "REDIS_URL or REDIS_HOST")
		return nil, ErrCacheNotConfigured
	}

	cache, err := pkgredis.NewRedisCache(&pkgredis.Config{
		URL:      cc.URL,
		Host:     cc.Host,
		Port:     cc.Port,
		Password: cc.Password,
		DB:       cc.DB,
	})
	if err != nil {
		logger.Warn("Cache (Redis) unreachable", "error", err)
		return nil, err
	}

	logger.Info("Cache (Redis) connected successfully")
	return cache, nil
}

// NewCacheOrNil returns nil when Redis is absent or unreachable; the rate
// limiters then stay in memory and /health reports cache 0.
func (cc *CacheConfig) NewCacheOrNil(logger *log.Logger) Cache {
	if !cc.IsConfigured() {
		logger.Info("Cache (Redis) is not configured; rate limiting stays in-memory")
		return nil
	}

	cache, err := cc.NewCache(logger)
	if err != nil {
		return nil
	}

	return cache
}

func CloseCache(cache Cache, logger *log.Logger) error {
	if cache == nil {
		return nil
	}

	if err := cache.Close(); err != nil {
		logger.Error("Failed to close cache", "error", err)
		return err
	}

	logger.Info("Cache connection closed")
	return nil
}

var ErrCacheNotConfigured = &ConfigurationError{Component: "cache", Missing: []string{"REDIS_URL", "REDIS_HOST"}}
