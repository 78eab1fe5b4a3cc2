package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/adapters/vendorstore"
	"github.com/mikey/llm-billing-guard/internal/config"
	"github.com/mikey/llm-billing-guard/internal/core"
)

// VendorStoreFactory creates vendor repositories based on configuration
type VendorStoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewVendorStoreFactory creates a new vendor store factory
func NewVendorStoreFactory(cfg *config.Config, logger *zap.Logger) *VendorStoreFactory {
	return &VendorStoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateVendorRepository creates a vendor repository based on the configuration
func (f *VendorStoreFactory) CreateVendorRepository() (core.VendorRepository, error) {
	storeCfg := f.cfg.GetVendorStore()

	switch storeCfg.Store {
	case "memory":
		return vendorstore.NewMemoryStore(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(storeCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return vendorstore.NewSQLiteStore(storeCfg.SQLitePath, f.logger)
	case "mysql":
		return vendorstore.NewMySQLStore(storeCfg.MySQLDSN, f.logger)
	case "postgres":
		return vendorstore.NewPostgresStore(storeCfg.PostgresDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported vendor store type: %s", storeCfg.Store)
	}
}
