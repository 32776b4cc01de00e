package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// RedisCache is the Pro tier cache, shared across replicas. Keys are
// namespaced xai:<tenant>:<key>.
type RedisCache struct {
	client *redis.Client
}

// incrWindowed bumps a counter and sets the window TTL only on the bump
// that created it, so the window does not slide on every increment.
var incrWindowed = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get returns the cached value, or nil on a miss.
func (c *RedisCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	val, err := c.client.Get(ctx, c.namespaced(tenantID, key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value with the given TTL.
func (c *RedisCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	return c.client.Set(ctx, c.namespaced(tenantID, key), value, ttl).Err()
}

// Delete removes a value.
func (c *RedisCache) Delete(ctx context.Context, tenantID string, key string) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	return c.client.Del(ctx, c.namespaced(tenantID, key)).Err()
}

// GetExplanation returns the cached explanation for a raw-alert hash,
// or nil on a miss.
func (c *RedisCache) GetExplanation(ctx context.Context, tenantID string, rawHash string) (*domain.ExplanationRecord, error) {
	data, err := c.Get(ctx, tenantID, explKey(rawHash))
	if err != nil || data == nil {
		return nil, err
	}

	var rec domain.ExplanationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SetExplanation caches a computed explanation under its raw-alert hash.
func (c *RedisCache) SetExplanation(ctx context.Context, tenantID string, rawHash string, rec *domain.ExplanationRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.Set(ctx, tenantID, explKey(rawHash), data, ttl)
}

// IncrementCounter bumps a windowed counter atomically across replicas.
func (c *RedisCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	fullKey := c.namespaced(tenantID, "counter:"+key)
	return incrWindowed.Run(ctx, c.client, []string{fullKey}, window.Milliseconds()).Int64()
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) namespaced(tenantID, key string) string {
	return "xai:" + tenantID + ":" + key
}
