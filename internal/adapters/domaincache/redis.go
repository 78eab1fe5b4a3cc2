package domaincache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

const keyPrefix = "billing-guard:domain:"

// RedisCache is a Redis implementation of the DomainCache interface.
// Entry expiry rides on Redis key TTLs, so Cleanup has nothing to do.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache creates a new Redis-backed domain cache
func NewRedisCache(addr, password string, db int, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		logger: logger,
	}, nil
}

// Get retrieves a cached analysis for a registrable domain
func (c *RedisCache) Get(ctx context.Context, domain string) (*core.DomainCacheEntry, error) {
	data, err := c.client.Get(ctx, keyPrefix+domain).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query Redis: %w", err)
	}

	var entry core.DomainCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	return &entry, nil
}

// Set stores a cache entry with its remaining TTL
func (c *RedisCache) Set(ctx context.Context, entry *core.DomainCacheEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+entry.Domain, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	return nil
}

// Delete removes a cache entry
func (c *RedisCache) Delete(ctx context.Context, domain string) error {
	if err := c.client.Del(ctx, keyPrefix+domain).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup is a no-op; Redis evicts expired keys itself
func (c *RedisCache) Cleanup(ctx context.Context) error {
	return nil
}

// Stop closes the Redis connection
func (c *RedisCache) Stop() {
	if err := c.client.Close(); err != nil {
		c.logger.Error("Failed to close Redis connection", zap.Error(err))
	}
}
