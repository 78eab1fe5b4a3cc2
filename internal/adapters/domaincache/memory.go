package domaincache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

// ErrNotFound is returned when a cache entry is not found or has expired
var ErrNotFound = errors.New("domain cache entry not found")

// MemoryCache is an in-memory implementation of the DomainCache interface
type MemoryCache struct {
	entries     map[string]*core.DomainCacheEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewMemoryCache creates a new in-memory domain cache
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration) *MemoryCache {
	cache := &MemoryCache{
		entries:     make(map[string]*core.DomainCacheEntry),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	// Start background cleanup
	go cache.startCleanupTask()

	return cache
}

// Get retrieves a cached analysis for a registrable domain
func (c *MemoryCache) Get(ctx context.Context, domain string) (*core.DomainCacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[domain]
	if !ok {
		return nil, ErrNotFound
	}

	// Check if entry has expired
	if time.Now().After(entry.ExpiresAt) {
		return nil, ErrNotFound
	}

	cached := *entry
	return &cached, nil
}

// Set stores a cache entry
func (c *MemoryCache) Set(ctx context.Context, entry *core.DomainCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached := *entry
	c.entries[entry.Domain] = &cached
	return nil
}

// Delete removes a cache entry
func (c *MemoryCache) Delete(ctx context.Context, domain string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, domain)
	return nil
}

// Cleanup removes expired entries
func (c *MemoryCache) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expiredCount := 0

	for domain, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, domain)
			expiredCount++
		}
	}

	c.logger.Debug("Cleaned up expired domain cache entries", zap.Int("expired_count", expiredCount))
	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (c *MemoryCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up domain cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (c *MemoryCache) Stop() {
	close(c.stopCh)
}
