package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisService = "hunt-cache"

// RedisWrapper guards the Redis commands used by the hunt cache.
type RedisWrapper struct {
	client redis.UniversalClient
	cb     *CircuitBreaker
	logger *zap.Logger
}

// NewRedisWrapper wraps client with a breaker configured from CB_REDIS_*.
func NewRedisWrapper(client redis.UniversalClient, logger *zap.Logger) *RedisWrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	config := GetRedisConfig().ToConfig()
	// A cache miss is a normal answer.
	config.IsFailure = func(err error) bool { return !errors.Is(err, redis.Nil) }
	cb := NewCircuitBreaker("redis", config, logger)
	GlobalMetricsCollector.RegisterCircuitBreaker("redis", redisService, cb)
	return &RedisWrapper{client: client, cb: cb, logger: logger}
}

// Ping checks connectivity.
func (rw *RedisWrapper) Ping(ctx context.Context) error {
	return rw.do(ctx, func() error { return rw.client.Ping(ctx).Err() })
}

// Get returns the raw value at key. A missing key returns redis.Nil.
func (rw *RedisWrapper) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := rw.do(ctx, func() error {
		var err error
		val, err = rw.client.Get(ctx, key).Bytes()
		return err
	})
	return val, err
}

// Set stores value at key with the given expiration.
func (rw *RedisWrapper) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return rw.do(ctx, func() error { return rw.client.Set(ctx, key, value, expiration).Err() })
}

// Del removes keys.
func (rw *RedisWrapper) Del(ctx context.Context, keys ...string) error {
	return rw.do(ctx, func() error { return rw.client.Del(ctx, keys...).Err() })
}

func (rw *RedisWrapper) do(ctx context.Context, fn func() error) error {
	err := rw.cb.Execute(ctx, fn)
	success := err == nil || errors.Is(err, redis.Nil)
	GlobalMetricsCollector.RecordRequest("redis", redisService, rw.cb.State(), success)
	return err
}

// Close closes the underlying client.
func (rw *RedisWrapper) Close() error {
	return rw.client.Close()
}

// IsCircuitBreakerOpen reports whether Redis calls are currently short-circuited.
func (rw *RedisWrapper) IsCircuitBreakerOpen() bool {
	return rw.cb.State() == StateOpen
}
