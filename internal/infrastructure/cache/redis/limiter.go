// Package redis throttles OTP and reset requests per email with Redis counters.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"storefront-identity/internal/config"
	"storefront-identity/internal/logger"
	appErrors "storefront-identity/pkg/errors"
)

type Limiter struct {
	client      goredis.Cmdable
	cooldown    time.Duration
	window      time.Duration
	maxInWindow int
	block       time.Duration
}

// NewClient connects and pings the configured Redis instance.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", cfg.Addr))
	return client, nil
}

func NewLimiter(client goredis.Cmdable, cfg config.OTPConfig) *Limiter {
	block := cfg.BlockDuration
	if block <= 0 {
		block = 3 * cfg.Window
	}
	return &Limiter{
		client:      client,
		cooldown:    cfg.Cooldown,
		window:      cfg.Window,
		maxInWindow: cfg.MaxPerWindow,
		block:       block,
	}
}

func keys(scope, key string) (block, last, count string) {
	return fmt.Sprintf("throttle:%s:block:%s", scope, key),
		fmt.Sprintf("throttle:%s:last:%s", scope, key),
		fmt.Sprintf("throttle:%s:count:%s", scope, key)
}

// Allow admits one request for key within scope or returns ErrTooManyRequests.
func (l *Limiter) Allow(ctx context.Context, scope, key string) error {
	blockKey, lastKey, countKey := keys(scope, key)

	if ttl, err := l.client.TTL(ctx, blockKey).Result(); err == nil && ttl > 0 {
		return fmt.Errorf("%w: blocked for %d seconds", appErrors.ErrTooManyRequests, int(ttl.Seconds()))
	}

	if l.cooldown > 0 {
		ok, err := l.client.SetNX(ctx, lastKey, "1", l.cooldown).Result()
		if err != nil {
			return fmt.Errorf("failed to check request cooldown: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: please wait before requesting again", appErrors.ErrTooManyRequests)
		}
	}

	if l.maxInWindow <= 0 || l.window <= 0 {
		return nil
	}

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, countKey)
	ttl := pipe.TTL(ctx, countKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to count requests: %w", err)
	}
	// The window starts at the first counted request; later ones must not
	// extend it. A negative TTL means the counter has no expiry yet.
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, countKey, l.window).Err(); err != nil {
			return fmt.Errorf("failed to start request window: %w", err)
		}
	}

	if int(incr.Val()) > l.maxInWindow {
		_ = l.client.Set(ctx, blockKey, "1", l.block).Err()
		logger.Warn("Request budget exhausted",
			zap.String("scope", scope),
			zap.Duration("block", l.block),
			zap.String("event", "request_throttled"),
		)
		return fmt.Errorf("%w: blocked for %d seconds", appErrors.ErrTooManyRequests, int(l.block.Seconds()))
	}

	return nil
}
