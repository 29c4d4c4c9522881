// Package ratelimit throttles sign-in attempts with a fixed window counter
// per key. Two backends are provided: an in-process one for single instances
// and a Redis one shared across replicas.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/upb/authd/config"
	"go.uber.org/zap"
)

// Result represents the outcome of a single attempt
type Result struct {
	Allowed    bool
	Remaining  int64
	Hits       int64
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter counts an attempt for key and reports whether it is within limits
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// window describes a fixed window limit shared by both backends
type window struct {
	prefix string
	max    int64
	size   time.Duration
	clock  clockwork.Clock
}

// bounds returns the current window start and the time it resets
func (w window) bounds() (start, reset time.Time, now time.Time) {
	now = w.clock.Now().UTC()
	start = now.Truncate(w.size)
	return start, start.Add(w.size), now
}

func (w window) key(key string, start time.Time) string {
	return fmt.Sprintf("%s%s:%d", w.prefix, strings.ReplaceAll(key, " ", "_"), start.Unix())
}

func (w window) result(hits int64, reset, now time.Time) Result {
	remaining := w.max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:   hits <= w.max,
		Remaining: remaining,
		Hits:      hits,
		ResetAt:   reset,
	}
	if !res.Allowed {
		res.RetryAfter = reset.Sub(now)
	}
	return res
}

// MemoryLimiter keeps counters in a go-cache instance
type MemoryLimiter struct {
	window
	cache *gocache.Cache
}

// NewMemoryLimiter creates an in-process limiter allowing max attempts per size
func NewMemoryLimiter(max int, size time.Duration, clock clockwork.Clock) *MemoryLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryLimiter{
		window: window{prefix: "rl:", max: int64(max), size: size, clock: clock},
		cache:  gocache.New(size, time.Minute),
	}
}

// Allow implements Limiter
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	start, reset, now := l.bounds()
	k := l.key(key, start)

	var hits int64
	for attempt := 0; attempt < 2; attempt++ {
		if err := l.cache.Add(k, int64(1), l.size); err == nil {
			hits = 1
			break
		}
		n, err := l.cache.IncrementInt64(k, 1)
		if err == nil {
			hits = n
			break
		}
		// The entry expired between Add and IncrementInt64; start over
	}
	if hits == 0 {
		return Result{}, fmt.Errorf("failed to count attempt for %q", key)
	}

	return l.result(hits, reset, now), nil
}

// RedisLimiter keeps counters in Redis using INCR and EXPIRE
type RedisLimiter struct {
	window
	client *redis.Client
}

// NewRedisLimiter creates a Redis backed limiter allowing max attempts per size
func NewRedisLimiter(client *redis.Client, max int, size time.Duration, clock clockwork.Clock) *RedisLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RedisLimiter{
		window: window{prefix: "authd:rl:", max: int64(max), size: size, clock: clock},
		client: client,
	}
}

// Allow implements Limiter
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	start, reset, now := l.bounds()
	k := l.key(key, start)

	incr := l.client.Incr(ctx, k)
	if err := incr.Err(); err != nil {
		return Result{}, fmt.Errorf("redis incr: %w", err)
	}

	// Set expiry on first hit
	if incr.Val() == 1 {
		if err := l.client.Expire(ctx, k, l.size).Err(); err != nil {
			return Result{}, fmt.Errorf("redis expire: %w", err)
		}
	}

	return l.result(incr.Val(), reset, now), nil
}

// NoopLimiter allows everything. Used when throttling is disabled.
type NoopLimiter struct{}

// Allow implements Limiter
func (NoopLimiter) Allow(context.Context, string) (Result, error) {
	return Result{Allowed: true}, nil
}

// NewLimiter builds the limiter selected by cfg. The Redis client is only
// required for the redis backend.
func NewLimiter(cfg config.ThrottleConfig, client *redis.Client, logger *zap.Logger) (Limiter, error) {
	if !cfg.Enabled {
		logger.Info("sign-in throttling disabled")
		return NoopLimiter{}, nil
	}

	switch cfg.Backend {
	case config.ThrottleBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("redis throttle backend requires a redis client")
		}
		logger.Info("sign-in throttling enabled",
			zap.String("backend", cfg.Backend),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("window", cfg.Window))
		return NewRedisLimiter(client, cfg.MaxAttempts, cfg.Window, nil), nil
	case config.ThrottleBackendMemory, "":
		logger.Info("sign-in throttling enabled",
			zap.String("backend", config.ThrottleBackendMemory),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("window", cfg.Window))
		return NewMemoryLimiter(cfg.MaxAttempts, cfg.Window, nil), nil
	default:
		return nil, fmt.Errorf("unknown throttle backend %q", cfg.Backend)
	}
}
