// Package cache stores verified hunt results so repeated identical hunts on
// the same day do not call the oracle again.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/circuitbreaker"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
)

// KeyPrefix namespaces every hunt cache key.
const KeyPrefix = "hunter:hunt:"

// Store is a hunt result cache.
type Store interface {
	Get(ctx context.Context, key string) ([]models.MarketSignal, bool, error)
	Put(ctx context.Context, key string, signals []models.MarketSignal, ttl time.Duration) error
}

// RedisStore keeps hunt results in Redis behind a circuit breaker.
type RedisStore struct {
	client *circuitbreaker.RedisWrapper
	logger *zap.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: circuitbreaker.NewRedisWrapper(client, logger),
		logger: logger,
	}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr string, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	store := NewRedisStore(client, logger)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return store, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]models.MarketSignal, bool, error) {
	data, err := s.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheLookup("miss")
		return nil, false, nil
	}
	if err != nil {
		metrics.RecordCacheLookup("error")
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}

	var signals []models.MarketSignal
	if err := json.Unmarshal(data, &signals); err != nil {
		metrics.RecordCacheLookup("error")
		return nil, false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	if signals == nil {
		signals = []models.MarketSignal{}
	}
	metrics.RecordCacheLookup("hit")
	return signals, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, signals []models.MarketSignal, ttl time.Duration) error {
	if signals == nil {
		signals = []models.MarketSignal{}
	}
	data, err := json.Marshal(signals)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

type keyMaterial struct {
	Profile  models.BusinessProfile `json:"profile"`
	Triggers []models.SalesTrigger  `json:"triggers"`
	Region   string                 `json:"region"`
	Day      string                 `json:"day"`
}

// Key derives the cache key of a hunt request on the calendar day of now.
// Only approved triggers take part, so toggling a pending trigger does not
// invalidate the entry.
func Key(profile models.BusinessProfile, triggers []models.SalesTrigger, region string, now time.Time) string {
	data, _ := json.Marshal(keyMaterial{
		Profile:  profile,
		Triggers: models.ApprovedTriggers(triggers),
		Region:   region,
		Day:      now.UTC().Format("2006-01-02"),
	})
	sum := sha256.Sum256(data)
	return KeyPrefix + hex.EncodeToString(sum[:])
}
