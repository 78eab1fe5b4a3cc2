package domaincache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

// SQLiteCache is a SQLite implementation of the DomainCache interface.
// Timestamps are stored as RFC 3339 UTC strings so lexicographic
// comparison matches chronological order.
type SQLiteCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewSQLiteCache creates a new SQLite-backed domain cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS domain_cache (
			domain TEXT PRIMARY KEY,
			is_legitimate BOOLEAN,
			confidence REAL,
			reasons TEXT,
			last_seen TIMESTAMP,
			expires_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create index on expires_at for faster cleanup
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_domain_cache_expires_at ON domain_cache(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	cache := &SQLiteCache{
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
func (c *SQLiteCache) Get(ctx context.Context, domain string) (*core.DomainCacheEntry, error) {
	var isLegitimate bool
	var confidence float64
	var reasonsJSON, lastSeen, expiresAt string

	err := c.db.QueryRowContext(ctx, `
		SELECT is_legitimate, confidence, reasons, last_seen, expires_at
		FROM domain_cache
		WHERE domain = ? AND expires_at > ?
	`, domain, time.Now().UTC().Format(time.RFC3339)).Scan(&isLegitimate, &confidence, &reasonsJSON, &lastSeen, &expiresAt)

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

	entry.LastSeen, err = time.Parse(time.RFC3339, lastSeen)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_seen timestamp: %w", err)
	}
	entry.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expires_at timestamp: %w", err)
	}

	return entry, nil
}

// Set stores a cache entry
func (c *SQLiteCache) Set(ctx context.Context, entry *core.DomainCacheEntry) error {
	reasonsJSON, err := json.Marshal(entry.Analysis.Reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO domain_cache (domain, is_legitimate, confidence, reasons, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Domain,
		entry.Analysis.IsLegitimate,
		entry.Analysis.Confidence,
		string(reasonsJSON),
		entry.LastSeen.UTC().Format(time.RFC3339),
		entry.ExpiresAt.UTC().Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}

	return nil
}

// Delete removes a cache entry
func (c *SQLiteCache) Delete(ctx context.Context, domain string) error {
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
func (c *SQLiteCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM domain_cache
		WHERE expires_at <= ?
	`, time.Now().UTC().Format(time.RFC3339))

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
func (c *SQLiteCache) startCleanupTask() {
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
func (c *SQLiteCache) Stop() {
	close(c.stopCh)
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
