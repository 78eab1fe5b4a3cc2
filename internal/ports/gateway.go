package ports

import (
	"context"

	"github.com/mikey/llm-billing-guard/internal/core"
)

// MessageGateway defines the interface for inbound message handling
type MessageGateway interface {
	// ProcessMessage normalizes a raw message and runs it through the
	// fraud-detection pipeline
	ProcessMessage(ctx context.Context, raw *core.RawMessage, userID string) (*core.Verdict, []*core.AuditLogEntry, error)

	// Start starts the gateway
	Start() error

	// Stop stops the gateway
	Stop() error
}
