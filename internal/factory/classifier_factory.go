package factory

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/adapters/bedrock"
	"github.com/mikey/llm-billing-guard/internal/adapters/breaker"
	"github.com/mikey/llm-billing-guard/internal/adapters/gemini"
	"github.com/mikey/llm-billing-guard/internal/adapters/openai"
	"github.com/mikey/llm-billing-guard/internal/config"
	"github.com/mikey/llm-billing-guard/internal/core"
	"github.com/mikey/llm-billing-guard/internal/metrics"
	"github.com/mikey/llm-billing-guard/internal/utils"
)

// ClassifierFactory creates billing-type classifiers
type ClassifierFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	metrics       *metrics.Metrics
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor, m *metrics.Metrics) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
		metrics:       m,
	}
}

// CreateClassifier creates a classifier for the configured provider,
// wrapped in a circuit breaker when one is enabled
func (f *ClassifierFactory) CreateClassifier() (core.Classifier, error) {
	llmConfig := f.cfg.GetLLM()

	var inner core.Classifier
	var err error

	switch llmConfig.Provider {
	case "bedrock":
		inner, err = bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	case "gemini":
		inner, err = gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	case "openai":
		inner, err = openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
	if err != nil {
		return nil, err
	}

	breakerCfg := f.cfg.GetBreaker()
	if !breakerCfg.Enabled {
		return inner, nil
	}

	interval, err := time.ParseDuration(breakerCfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid breaker interval: %w", err)
	}
	timeout, err := time.ParseDuration(breakerCfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid breaker timeout: %w", err)
	}

	return breaker.New(inner, breakerCfg.MaxFailures, interval, timeout, f.metrics, f.logger), nil
}
