package di

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/brands"
	"github.com/mikey/llm-billing-guard/internal/config"
	"github.com/mikey/llm-billing-guard/internal/core"
	"github.com/mikey/llm-billing-guard/internal/factory"
	"github.com/mikey/llm-billing-guard/internal/logging"
	"github.com/mikey/llm-billing-guard/internal/metrics"
	"github.com/mikey/llm-billing-guard/internal/ports"
	"github.com/mikey/llm-billing-guard/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		cfg, err := config.New()
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register metrics
	if err := container.Provide(prometheus.NewRegistry); err != nil {
		return nil, err
	}
	if err := container.Provide(func(reg *prometheus.Registry) *metrics.Metrics {
		return metrics.New(reg)
	}); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewVendorStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewAuditStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewGatewayFactory); err != nil {
		return nil, err
	}

	// Register classifier
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register domain cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.DomainCache, error) {
		return f.CreateDomainCache()
	}); err != nil {
		return nil, err
	}

	// Register brand registry
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *brands.Registry {
		extra := cfg.GetDomains().BrandDomains
		if len(extra) > 0 {
			logger.Info("Loaded extra brand domains", zap.Strings("domains", extra))
		}
		return brands.NewRegistry(extra, logger)
	}); err != nil {
		return nil, err
	}

	// Register domain analyzer
	if err := container.Provide(func(
		cfg *config.Config,
		registry *brands.Registry,
		cache core.DomainCache,
		cacheFactory *factory.CacheFactory,
		logger *zap.Logger,
	) (*core.DomainAnalyzer, error) {
		ttl, err := cacheFactory.GetCacheTTL()
		if err != nil {
			return nil, fmt.Errorf("invalid cache ttl: %w", err)
		}
		domainsCfg := cfg.GetDomains()
		return core.NewDomainAnalyzer(
			registry,
			cache,
			cacheFactory.IsCacheEnabled(),
			ttl,
			domainsCfg.SimilarityThreshold,
			domainsCfg.MaxHyphens,
			domainsCfg.MaxDigitRatio,
			domainsCfg.SuspiciousTLDs,
			logger,
		), nil
	}); err != nil {
		return nil, err
	}

	// Register vendor repository
	if err := container.Provide(func(f *factory.VendorStoreFactory) (core.VendorRepository, error) {
		return f.CreateVendorRepository()
	}); err != nil {
		return nil, err
	}

	// Register audit repository
	if err := container.Provide(func(f *factory.AuditStoreFactory) (core.AuditRepository, error) {
		return f.CreateAuditRepository()
	}); err != nil {
		return nil, err
	}

	// Register pipeline stages
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *core.RuleFilter {
		return core.NewRuleFilter(cfg.GetPrefilter().ExtraKeywords, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewVendorMatcher); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewAttributeExtractor); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) *core.Comparator {
		compareCfg := cfg.GetCompare()
		return core.NewComparator(
			compareCfg.AddressThreshold,
			compareCfg.BankThreshold,
			compareCfg.MinDigitGroup,
			compareCfg.PhoneSuffixLen,
		)
	}); err != nil {
		return nil, err
	}

	// Register normalizer
	if err := container.Provide(core.NewNormalizer); err != nil {
		return nil, err
	}

	// Register pipeline
	if err := container.Provide(func(
		cfg *config.Config,
		prefilter *core.RuleFilter,
		classifier core.Classifier,
		analyzer *core.DomainAnalyzer,
		matcher *core.VendorMatcher,
		extractor *core.AttributeExtractor,
		comparator *core.Comparator,
		audit core.AuditRepository,
		m *metrics.Metrics,
		logger *zap.Logger,
	) (*core.Pipeline, error) {
		classifierCfg := cfg.GetClassifier()
		timeout, err := time.ParseDuration(classifierCfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid classifier timeout: %w", err)
		}
		return core.NewPipeline(
			prefilter,
			classifier,
			analyzer,
			matcher,
			extractor,
			comparator,
			audit,
			m,
			logger,
			timeout,
			classifierCfg.FallbackConfidence,
		), nil
	}); err != nil {
		return nil, err
	}

	// Register message gateway
	if err := container.Provide(func(f *factory.GatewayFactory) (ports.MessageGateway, error) {
		return f.CreateMessageGateway()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
