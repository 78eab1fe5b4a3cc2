package domaincache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

const mysqlTimeFormat = "2006-01-02 15:04:05"

// MySQLCache is a MySQL implementation of the DomainCache interface
type MySQLCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewMySQLCache creates a new MySQL-backed domain cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS domain_cache (
			domain VARCHAR(255) PRIMARY KEY,
			is_legitimate BOOLEAN,
			confidence DOUBLE,
			reasons TEXT,
			last_seen DATETIME,
			expires_at DATETIME,
			INDEX idx_domain_cache_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	cache := &MySQLCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	// Start background cleanup
	go cache.startCleanupTask()

	return cache, nil
}

// Get retrieves a cached analysis for a registrable domain
func (c *MySQLCache) Get(ctx context.Context, domain string) (*core.DomainCacheEntry, error) {
	var isLegitimate bool
	var confidence float64
	var reasonsJSON, lastSeen, expiresAt string

	err := c.db.QueryRowContext(ctx, `
		SELECT is_legitimate, confidence, reasons, last_seen, expires_at
		FROM domain_cache
		WHERE domain = ? AND expires_at > ?
	`, domain, time.Now().UTC().Format(mysqlTimeFormat)).Scan(&isLegitimate, &confidence, &reasonsJSON, &lastSeen, &expiresAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	var reasons []string
	if reasonsJSON != "" {
		if err := json.Unmarshal([]byte(reasonsJSON), &reasons); err != nil {
			return nil, fmt.Errorf("failed to decode reasons: %w", err)
		}
	}

	entry := &core.DomainCacheEntry{
		Domain: domain,
		Analysis: core.DomainAnalysis{
			Domain:       domain,
			IsLegitimate: isLegitimate,
			Confidence:   confidence,
			Reasons:      reasons,
		},
	}

	entry.LastSeen, err = time.Parse(mysqlTimeFormat, lastSeen)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_seen timestamp: %w", err)
	}
	entry.ExpiresAt, err = time.Parse(mysqlTimeFormat, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expires_at timestamp: %w", err)
	}

	return entry, nil
}

// Set stores a cache entry
func (c *MySQLCache) Set(ctx context.Context, entry *core.DomainCacheEntry) error {
	reasonsJSON, err := json.Marshal(entry.Analysis.Reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO domain_cache (domain, is_legitimate, confidence, reasons, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			is_legitimate = VALUES(is_legitimate),
			confidence = VALUES(confidence),
			reasons = VALUES(reasons),
			last_seen = VALUES(last_seen),
			expires_at = VALUES(expires_at)
	`, entry.Domain,
		entry.Analysis.IsLegitimate,
		entry.Analysis.Confidence,
		string(reasonsJSON),
		entry.LastSeen.UTC().Format(mysqlTimeFormat),
		entry.ExpiresAt.UTC().Format(mysqlTimeFormat))

	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}

	return nil
}

// Delete removes a cache entry
func (c *MySQLCache) Delete(ctx context.Context, domain string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM domain_cache
		WHERE domain = ?
	`, domain)

	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

// Cleanup removes expired entries
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM domain_cache
		WHERE expires_at <= ?
	`, time.Now().UTC().Format(mysqlTimeFormat))

	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (c *MySQLCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database connection
func (c *MySQLCache) Stop() {
	close(c.stopCh)
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}
