package domaincache

import (
	"context"

	"github.com/mikey/llm-billing-guard/internal/core"
	"github.com/mikey/llm-billing-guard/internal/metrics"
)

// InstrumentedCache decorates a DomainCache with hit and miss counters
type InstrumentedCache struct {
	inner core.DomainCache
	m     *metrics.Metrics
}

// NewInstrumentedCache wraps inner so cache effectiveness shows up in
// the metrics endpoint
func NewInstrumentedCache(inner core.DomainCache, m *metrics.Metrics) *InstrumentedCache {
	return &InstrumentedCache{inner: inner, m: m}
}

// Get counts a hit or a miss and delegates
func (c *InstrumentedCache) Get(ctx context.Context, domain string) (*core.DomainCacheEntry, error) {
	entry, err := c.inner.Get(ctx, domain)
	if err != nil {
		c.m.DomainCacheMisses.Inc()
		return nil, err
	}

	c.m.DomainCacheHits.Inc()
	return entry, nil
}

// Set delegates to the wrapped cache
func (c *InstrumentedCache) Set(ctx context.Context, entry *core.DomainCacheEntry) error {
	return c.inner.Set(ctx, entry)
}

// Delete delegates to the wrapped cache
func (c *InstrumentedCache) Delete(ctx context.Context, domain string) error {
	return c.inner.Delete(ctx, domain)
}

// Cleanup delegates to the wrapped cache
func (c *InstrumentedCache) Cleanup(ctx context.Context) error {
	return c.inner.Cleanup(ctx)
}

// Stop stops the wrapped cache when it supports stopping
func (c *InstrumentedCache) Stop() {
	if stopper, ok := c.inner.(interface{ Stop() }); ok {
		stopper.Stop()
	}
}
