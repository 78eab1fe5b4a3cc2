package factory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/adapters/domaincache"
	"github.com/mikey/llm-billing-guard/internal/config"
	"github.com/mikey/llm-billing-guard/internal/core"
	"github.com/mikey/llm-billing-guard/internal/metrics"
)

// CacheFactory creates domain analysis caches based on configuration
type CacheFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *CacheFactory {
	return &CacheFactory{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// CreateDomainCache creates a domain cache based on the configuration.
// The returned cache counts hits and misses.
func (f *CacheFactory) CreateDomainCache() (core.DomainCache, error) {
	cacheType := f.cfg.GetString("cache.type")
	cleanupFreq, err := f.cfg.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return nil, fmt.Errorf("invalid cache cleanup frequency: %w", err)
	}

	var inner core.DomainCache
	switch cacheType {
	case "memory":
		inner = domaincache.NewMemoryCache(f.logger, cleanupFreq)
	case "redis":
		inner, err = domaincache.NewRedisCache(
			f.cfg.GetString("cache.redis_addr"),
			f.cfg.GetString("cache.redis_password"),
			f.cfg.GetInt("cache.redis_db"),
			f.logger,
		)
		if err != nil {
			return nil, err
		}
	case "sqlite":
		sqlitePath := f.cfg.GetString("cache.sqlite_path")
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		inner, err = domaincache.NewSQLiteCache(sqlitePath, f.logger, cleanupFreq)
		if err != nil {
			return nil, err
		}
	case "mysql":
		inner, err = domaincache.NewMySQLCache(f.cfg.GetString("cache.mysql_dsn"), f.logger, cleanupFreq)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheType)
	}

	return domaincache.NewInstrumentedCache(inner, f.metrics), nil
}

// GetCacheTTL returns the configured cache TTL
func (f *CacheFactory) GetCacheTTL() (time.Duration, error) {
	return f.cfg.GetDuration("cache.ttl")
}

// IsCacheEnabled returns whether domain analysis caching is enabled
func (f *CacheFactory) IsCacheEnabled() bool {
	return f.cfg.GetBool("cache.enabled")
}
