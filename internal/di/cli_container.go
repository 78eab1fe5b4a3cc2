package di

import (
	"flag"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/adapters/auditstore"
	"github.com/mikey/llm-billing-guard/internal/adapters/gateway"
	"github.com/mikey/llm-billing-guard/internal/brands"
	"github.com/mikey/llm-billing-guard/internal/config"
	"github.com/mikey/llm-billing-guard/internal/core"
	"github.com/mikey/llm-billing-guard/internal/factory"
	"github.com/mikey/llm-billing-guard/internal/logging"
	"github.com/mikey/llm-billing-guard/internal/metrics"
	"github.com/mikey/llm-billing-guard/internal/utils"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// LLM provider flags
	Provider    string
	MaxTokens   int
	Temperature float64
	TopP        float64
	MaxBodySize int

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIModelName string

	// Vendor history flags
	User         string
	VendorStore  string
	VendorDBPath string

	// Input flags
	InputFile  string
	Verbose    bool
	JSONOutput bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// LLM provider flags
	flag.StringVar(&flags.Provider, "provider", "bedrock", "LLM provider (bedrock, gemini, openai)")
	flag.IntVar(&flags.MaxTokens, "max-tokens", 1000, "Maximum tokens for LLM response")
	flag.Float64Var(&flags.Temperature, "temperature", 0.1, "Temperature for LLM generation")
	flag.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for LLM generation")
	flag.IntVar(&flags.MaxBodySize, "max-body-size", 4096, "Maximum message body size to send to the classifier")

	// Bedrock flags
	flag.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	flag.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	flag.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	flag.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	flag.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	flag.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4", "OpenAI model name")

	// Vendor history flags
	flag.StringVar(&flags.User, "user", "default", "User whose vendor history is consulted")
	flag.StringVar(&flags.VendorStore, "vendor-store", "memory", "Vendor store backend (memory, sqlite, mysql, postgres)")
	flag.StringVar(&flags.VendorDBPath, "vendor-db", "", "Path to the SQLite vendor database")

	// Input flags
	flag.StringVar(&flags.InputFile, "file", "", "Input message file (use stdin if not specified)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose output")
	flag.BoolVar(&flags.JSONOutput, "json", false, "Emit the verdict as a JSON document")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.New()
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
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

	// Register classifier
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register brand registry
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *brands.Registry {
		return brands.NewRegistry(cfg.GetDomains().BrandDomains, logger)
	}); err != nil {
		return nil, err
	}

	// Register domain analyzer with no cache
	if err := container.Provide(func(cfg *config.Config, registry *brands.Registry, logger *zap.Logger) *core.DomainAnalyzer {
		domainsCfg := cfg.GetDomains()
		return core.NewDomainAnalyzer(
			registry,
			nil,   // No cache for CLI
			false, // Cache disabled
			time.Duration(0),
			domainsCfg.SimilarityThreshold,
			domainsCfg.MaxHyphens,
			domainsCfg.MaxDigitRatio,
			domainsCfg.SuspiciousTLDs,
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register vendor repository
	if err := container.Provide(factory.NewVendorStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.VendorStoreFactory) (core.VendorRepository, error) {
		return f.CreateVendorRepository()
	}); err != nil {
		return nil, err
	}

	// Register in-memory audit log for one-shot runs
	if err := container.Provide(func(logger *zap.Logger) core.AuditRepository {
		return auditstore.NewMemoryStore(logger)
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

	// Register CLI gateway
	if err := container.Provide(func(
		pipeline *core.Pipeline,
		normalizer *core.Normalizer,
		logger *zap.Logger,
		flags *CLIFlags,
	) (*gateway.CLIGateway, error) {
		return gateway.NewCLIGateway(pipeline, normalizer, logger, flags.User, flags.Verbose, flags.JSONOutput)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set some cli specific settings
	v.Set("server.gateway_type", "cli")
	v.Set("cli.user", flags.User)
	v.Set("cli.verbose", flags.Verbose)
	v.Set("cli.json", flags.JSONOutput)

	// One-shot runs get no circuit breaker and no domain cache
	v.Set("breaker.enabled", false)
	v.Set("cache.enabled", false)

	// Set LLM provider
	v.Set("llm.provider", flags.Provider)

	// Set provider-specific configuration
	switch flags.Provider {
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
		v.Set("bedrock.max_tokens", flags.MaxTokens)
		v.Set("bedrock.temperature", flags.Temperature)
		v.Set("bedrock.top_p", flags.TopP)
		v.Set("bedrock.max_body_size", flags.MaxBodySize)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
		v.Set("gemini.max_tokens", flags.MaxTokens)
		v.Set("gemini.temperature", flags.Temperature)
		v.Set("gemini.top_p", flags.TopP)
		v.Set("gemini.max_body_size", flags.MaxBodySize)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		v.Set("openai.model_name", flags.OpenAIModelName)
		v.Set("openai.max_tokens", flags.MaxTokens)
		v.Set("openai.temperature", flags.Temperature)
		v.Set("openai.top_p", flags.TopP)
		v.Set("openai.max_body_size", flags.MaxBodySize)
	}

	// Set vendor store
	v.Set("vendors.store", flags.VendorStore)
	if flags.VendorDBPath != "" {
		v.Set("vendors.sqlite_path", flags.VendorDBPath)
	}

	// Keep the one-shot audit trail in memory
	v.Set("audit.store", "memory")

	return config.NewFromViper(v)
}
