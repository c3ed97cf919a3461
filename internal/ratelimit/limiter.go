// Package ratelimit implements fixed-window request counters in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("redis unavailable")

type Config struct {
	Prefix string
	Limit  int
	Window time.Duration
}

// Limiter allows Limit hits per key per Window. The window starts with the
// first hit and is not sliding.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Allow counts a hit for key and reports whether it is within budget.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.config.Limit <= 0 {
		return true, nil
	}
	count, err := l.incrementWithTTL(ctx, l.config.Prefix+":"+key, l.config.Window)
	if err != nil {
		return false, err
	}
	return count <= int64(l.config.Limit), nil
}

// incrementWithTTL bumps the counter and reads its TTL in one MULTI. A key
// without a TTL (first hit, or an earlier EXPIRE that never landed) gets the
// window set, so a client can never stay blocked past one window.
func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if pttl.Val() < 0 {
		if err := l.redis.PExpire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return incr.Val(), nil
}

// NewClient parses a redis:// URL and pings the server.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return client, nil
}
