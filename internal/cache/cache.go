package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// New builds the configured cache: LRU for the Community tier, Redis for
// Pro, two-phase (LRU in front of Redis) when enabled.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil

	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// TwoPhaseCache layers a local LRU over Redis. Reads fill the local
// layer on a Redis hit; local entries carry a capped TTL so replicas
// converge after invalidation.
type TwoPhaseCache struct {
	local  *LRUCache
	remote *RedisCache
	l1TTL  time.Duration
}

// NewTwoPhaseCache builds the layered cache from one config.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	remote, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}

	l1TTL := cfg.LocalTTL
	if l1TTL == 0 {
		l1TTL = 5 * time.Minute
	}

	return &TwoPhaseCache{
		local:  NewLRUCache(cfg.LocalMaxSize),
		remote: remote,
		l1TTL:  l1TTL,
	}, nil
}

// Get reads local first, then Redis, filling local on a remote hit.
func (c *TwoPhaseCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	val, err := c.local.Get(ctx, tenantID, key)
	if err != nil || val != nil {
		return val, err
	}

	val, err = c.remote.Get(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		_ = c.local.Set(ctx, tenantID, key, val, c.l1TTL)
	}
	return val, nil
}

// Set writes both layers; the local copy never outlives the remote TTL.
func (c *TwoPhaseCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, tenantID, key, value, c.localTTL(ttl)); err != nil {
		return err
	}
	return c.remote.Set(ctx, tenantID, key, value, ttl)
}

// Delete removes the key from both layers.
func (c *TwoPhaseCache) Delete(ctx context.Context, tenantID string, key string) error {
	if err := c.local.Delete(ctx, tenantID, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, tenantID, key)
}

// GetExplanation reads local first, then Redis, filling local on a hit.
func (c *TwoPhaseCache) GetExplanation(ctx context.Context, tenantID string, rawHash string) (*domain.ExplanationRecord, error) {
	rec, err := c.local.GetExplanation(ctx, tenantID, rawHash)
	if err != nil || rec != nil {
		return rec, err
	}

	rec, err = c.remote.GetExplanation(ctx, tenantID, rawHash)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		_ = c.local.SetExplanation(ctx, tenantID, rawHash, rec, c.l1TTL)
	}
	return rec, nil
}

// SetExplanation caches the explanation in both layers.
func (c *TwoPhaseCache) SetExplanation(ctx context.Context, tenantID string, rawHash string, rec *domain.ExplanationRecord, ttl time.Duration) error {
	if err := c.local.SetExplanation(ctx, tenantID, rawHash, rec, c.localTTL(ttl)); err != nil {
		return err
	}
	return c.remote.SetExplanation(ctx, tenantID, rawHash, rec, ttl)
}

// IncrementCounter goes straight to Redis. Local counters would drift
// between replicas.
func (c *TwoPhaseCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	return c.remote.IncrementCounter(ctx, tenantID, key, window)
}

// Ping checks both layers.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.local.Ping(ctx); err != nil {
		return fmt.Errorf("local ping failed: %w", err)
	}
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes both layers.
func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

// Stats returns the local layer's statistics.
func (c *TwoPhaseCache) Stats() (size int, capacity int) {
	return c.local.Stats()
}

func (c *TwoPhaseCache) localTTL(ttl time.Duration) time.Duration {
	if ttl < c.l1TTL {
		return ttl
	}
	return c.l1TTL
}
