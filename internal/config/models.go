package config

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// ClassifierConfig represents the stage settings for the type classifier
type ClassifierConfig struct {
	Timeout            string
	FallbackConfidence float64
}

// BreakerConfig represents the circuit breaker settings guarding the
// classification service
type BreakerConfig struct {
	Enabled     bool
	MaxFailures int
	Interval    string
	Timeout     string
}

// PrefilterConfig represents the rule-based pre-filter settings
type PrefilterConfig struct {
	ExtraKeywords []string
}

// DomainsConfig represents the domain legitimacy analyzer settings
type DomainsConfig struct {
	SimilarityThreshold float64
	MaxHyphens          int
	MaxDigitRatio       float64
	SuspiciousTLDs      []string
	BrandDomains        []string
}

// CompareConfig represents the attribute comparator thresholds
type CompareConfig struct {
	AddressThreshold float64
	BankThreshold    float64
	MinDigitGroup    int
	PhoneSuffixLen   int
}

// VendorStoreConfig represents the vendor datastore settings
type VendorStoreConfig struct {
	Store       string
	SQLitePath  string
	MySQLDSN    string
	PostgresDSN string
}

// AuditStoreConfig represents the audit log store settings
type AuditStoreConfig struct {
	Store       string
	SQLitePath  string
	MySQLDSN    string
	PostgresDSN string
}

// CacheConfig represents the domain analysis cache settings
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              string
	CleanupFrequency string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	SQLitePath       string
	MySQLDSN         string
}

// HeadersConfig represents the verdict header names stamped on messages
type HeadersConfig struct {
	Status     string
	Confidence string
	Reason     string
}

// ServerConfig represents the SMTP gateway settings
type ServerConfig struct {
	ListenAddress   string
	ReinjectAddress string
	BlockFraudulent bool
	DefaultUser     string
	Headers         HeadersConfig
}

// MetricsConfig represents the metrics endpoint settings
type MetricsConfig struct {
	Enabled       bool
	ListenAddress string
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetClassifier returns the type classifier stage configuration
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		Timeout:            c.GetString("classifier.timeout"),
		FallbackConfidence: c.GetFloat64("classifier.fallback_confidence"),
	}
}

// GetBreaker returns the circuit breaker configuration
func (c *Config) GetBreaker() BreakerConfig {
	return BreakerConfig{
		Enabled:     c.GetBool("breaker.enabled"),
		MaxFailures: c.GetInt("breaker.max_failures"),
		Interval:    c.GetString("breaker.interval"),
		Timeout:     c.GetString("breaker.timeout"),
	}
}

// GetPrefilter returns the pre-filter configuration
func (c *Config) GetPrefilter() PrefilterConfig {
	return PrefilterConfig{
		ExtraKeywords: c.GetStringSlice("prefilter.extra_keywords"),
	}
}

// GetDomains returns the domain analyzer configuration
func (c *Config) GetDomains() DomainsConfig {
	return DomainsConfig{
		SimilarityThreshold: c.GetFloat64("domains.similarity_threshold"),
		MaxHyphens:          c.GetInt("domains.max_hyphens"),
		MaxDigitRatio:       c.GetFloat64("domains.max_digit_ratio"),
		SuspiciousTLDs:      c.GetStringSlice("domains.suspicious_tlds"),
		BrandDomains:        c.GetStringSlice("domains.brand_domains"),
	}
}

// GetCompare returns the attribute comparator configuration
func (c *Config) GetCompare() CompareConfig {
	return CompareConfig{
		AddressThreshold: c.GetFloat64("compare.address_threshold"),
		BankThreshold:    c.GetFloat64("compare.bank_threshold"),
		MinDigitGroup:    c.GetInt("compare.min_digit_group"),
		PhoneSuffixLen:   c.GetInt("compare.phone_suffix_len"),
	}
}

// GetVendorStore returns the vendor datastore configuration
func (c *Config) GetVendorStore() VendorStoreConfig {
	return VendorStoreConfig{
		Store:       c.GetString("vendors.store"),
		SQLitePath:  c.GetString("vendors.sqlite_path"),
		MySQLDSN:    c.GetString("vendors.mysql_dsn"),
		PostgresDSN: c.GetString("vendors.postgres_dsn"),
	}
}

// GetAuditStore returns the audit log store configuration
func (c *Config) GetAuditStore() AuditStoreConfig {
	return AuditStoreConfig{
		Store:       c.GetString("audit.store"),
		SQLitePath:  c.GetString("audit.sqlite_path"),
		MySQLDSN:    c.GetString("audit.mysql_dsn"),
		PostgresDSN: c.GetString("audit.postgres_dsn"),
	}
}

// GetCache returns the domain analysis cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              c.GetString("cache.ttl"),
		CleanupFrequency: c.GetString("cache.cleanup_frequency"),
		RedisAddr:        c.GetString("cache.redis_addr"),
		RedisPassword:    c.GetString("cache.redis_password"),
		RedisDB:          c.GetInt("cache.redis_db"),
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
	}
}

// GetServer returns the SMTP gateway configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress:   c.GetString("server.listen_address"),
		ReinjectAddress: c.GetString("server.reinject_address"),
		BlockFraudulent: c.GetBool("server.block_fraudulent"),
		DefaultUser:     c.GetString("server.default_user"),
		Headers: HeadersConfig{
			Status:     c.GetString("server.headers.status"),
			Confidence: c.GetString("server.headers.confidence"),
			Reason:     c.GetString("server.headers.reason"),
		},
	}
}

// GetMetrics returns the metrics endpoint configuration
func (c *Config) GetMetrics() MetricsConfig {
	return MetricsConfig{
		Enabled:       c.GetBool("metrics.enabled"),
		ListenAddress: c.GetString("metrics.listen_address"),
	}
}
