package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/adapters/gateway"
	"github.com/mikey/llm-billing-guard/internal/config"
	"github.com/mikey/llm-billing-guard/internal/core"
	"github.com/mikey/llm-billing-guard/internal/ports"
)

// GatewayFactory creates message gateways based on configuration
type GatewayFactory struct {
	cfg        *config.Config
	logger     *zap.Logger
	pipeline   *core.Pipeline
	normalizer *core.Normalizer
}

// NewGatewayFactory creates a new gateway factory
func NewGatewayFactory(cfg *config.Config, logger *zap.Logger, pipeline *core.Pipeline, normalizer *core.Normalizer) *GatewayFactory {
	return &GatewayFactory{
		cfg:        cfg,
		logger:     logger,
		pipeline:   pipeline,
		normalizer: normalizer,
	}
}

// CreateMessageGateway creates a message gateway based on the configuration
func (f *GatewayFactory) CreateMessageGateway() (ports.MessageGateway, error) {
	gatewayType := f.cfg.GetString("server.gateway_type")

	switch gatewayType {
	case "smtp":
		serverCfg := f.cfg.GetServer()
		return gateway.NewSMTPGateway(
			f.pipeline,
			f.normalizer,
			f.logger,
			serverCfg.ListenAddress,
			serverCfg.ReinjectAddress,
			serverCfg.BlockFraudulent,
			serverCfg.DefaultUser,
			serverCfg.Headers.Status,
			serverCfg.Headers.Confidence,
			serverCfg.Headers.Reason,
		), nil
	case "cli":
		return gateway.NewCLIGateway(
			f.pipeline,
			f.normalizer,
			f.logger,
			f.cfg.GetString("cli.user"),
			f.cfg.GetBool("cli.verbose"),
			f.cfg.GetBool("cli.json"),
		)
	default:
		return nil, fmt.Errorf("unsupported gateway type: %s", gatewayType)
	}
}
