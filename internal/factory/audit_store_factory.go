package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/adapters/auditstore"
	"github.com/mikey/llm-billing-guard/internal/config"
	"github.com/mikey/llm-billing-guard/internal/core"
)

// AuditStoreFactory creates audit log repositories based on configuration
type AuditStoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewAuditStoreFactory creates a new audit store factory
func NewAuditStoreFactory(cfg *config.Config, logger *zap.Logger) *AuditStoreFactory {
	return &AuditStoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateAuditRepository creates an audit repository based on the configuration
func (f *AuditStoreFactory) CreateAuditRepository() (core.AuditRepository, error) {
	storeCfg := f.cfg.GetAuditStore()

	switch storeCfg.Store {
	case "memory":
		return auditstore.NewMemoryStore(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(storeCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return auditstore.NewSQLiteStore(storeCfg.SQLitePath, f.logger)
	case "mysql":
		return auditstore.NewMySQLStore(storeCfg.MySQLDSN, f.logger)
	case "postgres":
		return auditstore.NewPostgresStore(storeCfg.PostgresDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported audit store type: %s", storeCfg.Store)
	}
}
