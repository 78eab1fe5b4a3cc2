package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// settings collects the values that must hold for the pipeline to run,
// expressed as validation tags
type settings struct {
	Provider            string  `validate:"oneof=bedrock gemini openai"`
	ClassifierTimeout   string  `validate:"required"`
	FallbackConfidence  float64 `validate:"gte=0,lte=1"`
	SimilarityThreshold float64 `validate:"gte=0,lte=1"`
	MaxHyphens          int     `validate:"gte=0"`
	MaxDigitRatio       float64 `validate:"gte=0,lte=1"`
	AddressThreshold    float64 `validate:"gte=0,lte=1"`
	BankThreshold       float64 `validate:"gte=0,lte=1"`
	MinDigitGroup       int     `validate:"gte=1"`
	PhoneSuffixLen      int     `validate:"gte=4,lte=15"`
	VendorStore         string  `validate:"oneof=memory sqlite mysql postgres"`
	AuditStore          string  `validate:"oneof=memory sqlite mysql postgres"`
	CacheType           string  `validate:"oneof=memory redis sqlite mysql"`
	ListenAddress       string  `validate:"required,hostname_port"`
	MetricsAddress      string  `validate:"required,hostname_port"`
	LogLevel            string  `validate:"oneof=debug info warn error"`
	LogFormat           string  `validate:"oneof=json console"`
}

// Validate checks the configuration for values the pipeline cannot run
// with. Durations are parsed separately since validator has no tag for
// Go duration strings.
func (c *Config) Validate() error {
	s := settings{
		Provider:            c.GetLLM().Provider,
		ClassifierTimeout:   c.GetString("classifier.timeout"),
		FallbackConfidence:  c.GetFloat64("classifier.fallback_confidence"),
		SimilarityThreshold: c.GetFloat64("domains.similarity_threshold"),
		MaxHyphens:          c.GetInt("domains.max_hyphens"),
		MaxDigitRatio:       c.GetFloat64("domains.max_digit_ratio"),
		AddressThreshold:    c.GetFloat64("compare.address_threshold"),
		BankThreshold:       c.GetFloat64("compare.bank_threshold"),
		MinDigitGroup:       c.GetInt("compare.min_digit_group"),
		PhoneSuffixLen:      c.GetInt("compare.phone_suffix_len"),
		VendorStore:         c.GetString("vendors.store"),
		AuditStore:          c.GetString("audit.store"),
		CacheType:           c.GetString("cache.type"),
		ListenAddress:       c.GetString("server.listen_address"),
		MetricsAddress:      c.GetString("metrics.listen_address"),
		LogLevel:            c.GetString("logging.level"),
		LogFormat:           c.GetString("logging.format"),
	}

	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, key := range []string{
		"classifier.timeout",
		"breaker.interval",
		"breaker.timeout",
		"cache.ttl",
		"cache.cleanup_frequency",
	} {
		if _, err := c.GetDuration(key); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
	}

	return nil
}
