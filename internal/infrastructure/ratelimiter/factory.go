package ratelimiter

import (
	"fmt"

	"github.com/hilthontt/parley/internal/infrastructure/configs"
	"github.com/redis/go-redis/v9"
)

const (
	StrategyTokenBucket = "token_bucket"
	StrategyFixedWindow = "fixed_window"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// FromConfig builds the configured limiter. client is only used by the token
// bucket with the redis store and may be nil otherwise.
func FromConfig(cfg configs.RateLimiterConfig, client *redis.Client) (Limiter, error) {
	switch cfg.Strategy {
	case StrategyFixedWindow:
		return NewFixedWindow(cfg.MaxBurst, cfg.Window, cfg.SourceHeaderKey), nil
	case StrategyTokenBucket, "":
	default:
		return nil, fmt.Errorf("unknown rate limit strategy %q", cfg.Strategy)
	}

	var cache GetterSetter
	switch cfg.Store {
	case StoreRedis:
		if client == nil {
			return nil, fmt.Errorf("rate limit store %q requires a redis client", cfg.Store)
		}
		cache = NewRedis(client, "parley:")
	case StoreMemory, "":
		cache = NewInMemory(cfg.CacheTTL)
	default:
		return nil, fmt.Errorf("unknown rate limit store %q", cfg.Store)
	}

	return New(Options{
		MaxRatePerSecond: cfg.MaxRatePerSecond,
		MaxBurst:         cfg.MaxBurst,
		Cache:            cache,
		CacheTTL:         cfg.CacheTTL,
		SourceHeaderKey:  cfg.SourceHeaderKey,
	}), nil
}
