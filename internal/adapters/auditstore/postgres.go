package auditstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

// PostgresStore is a PostgreSQL implementation of the AuditRepository
// interface. The table is append-only: the adapter issues no UPDATE or
// DELETE statements.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL audit store
func NewPostgresStore(dsn string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			message_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			step TEXT NOT NULL,
			decision BOOLEAN,
			confidence DOUBLE PRECISION,
			reasoning TEXT,
			details JSONB,
			created_at TIMESTAMPTZ
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_audit_message ON audit_log(message_id, user_id)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &PostgresStore{
		db:     db,
		logger: logger,
	}, nil
}

// Append persists one audit entry and returns its assigned id
func (s *PostgresStore) Append(ctx context.Context, entry *core.AuditLogEntry) (string, error) {
	id := uuid.NewString()

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entry details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, message_id, user_id, step, decision, confidence, reasoning, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, entry.MessageID, entry.UserID, string(entry.Step), entry.Decision, entry.Confidence, entry.Reasoning, string(details), entry.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return id, nil
}

// ListByMessage returns all entries recorded for a message, oldest first
func (s *PostgresStore) ListByMessage(ctx context.Context, messageID, userID string) ([]*core.AuditLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, user_id, step, decision, confidence, reasoning, details, created_at
		FROM audit_log
		WHERE message_id = $1 AND user_id = $2
		ORDER BY seq ASC
	`, messageID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var out []*core.AuditLogEntry
	for rows.Next() {
		var entry core.AuditLogEntry
		var step string
		var details []byte

		if err := rows.Scan(
			&entry.ID,
			&entry.MessageID,
			&entry.UserID,
			&step,
			&entry.Decision,
			&entry.Confidence,
			&entry.Reasoning,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		entry.Step = core.AuditStep(step)

		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal entry details: %w", err)
			}
		}

		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit rows: %w", err)
	}

	return out, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
