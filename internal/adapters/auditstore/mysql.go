package auditstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

const mysqlTimeFormat = "2006-01-02 15:04:05.000000"

// MySQLStore is a MySQL implementation of the AuditRepository interface.
// The table is append-only: the adapter issues no UPDATE or DELETE
// statements.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore creates a new MySQL audit store
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
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
		CREATE TABLE IF NOT EXISTS audit_log (
			seq BIGINT AUTO_INCREMENT PRIMARY KEY,
			id VARCHAR(64) NOT NULL UNIQUE,
			message_id VARCHAR(255) NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			step VARCHAR(32) NOT NULL,
			decision BOOLEAN,
			confidence DOUBLE,
			reasoning TEXT,
			details TEXT,
			created_at DATETIME(6),
			INDEX idx_audit_message (message_id, user_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLStore{
		db:     db,
		logger: logger,
	}, nil
}

// Append persists one audit entry and returns its assigned id
func (s *MySQLStore) Append(ctx context.Context, entry *core.AuditLogEntry) (string, error) {
	id := uuid.NewString()

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entry details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, message_id, user_id, step, decision, confidence, reasoning, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, entry.MessageID, entry.UserID, string(entry.Step), entry.Decision, entry.Confidence, entry.Reasoning, string(details), entry.CreatedAt.Format(mysqlTimeFormat))
	if err != nil {
		return "", fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return id, nil
}

// ListByMessage returns all entries recorded for a message, oldest first
func (s *MySQLStore) ListByMessage(ctx context.Context, messageID, userID string) ([]*core.AuditLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, user_id, step, decision, confidence, reasoning, details, created_at
		FROM audit_log
		WHERE message_id = ? AND user_id = ?
		ORDER BY seq ASC
	`, messageID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var out []*core.AuditLogEntry
	for rows.Next() {
		var entry core.AuditLogEntry
		var step, details, createdAt string

		if err := rows.Scan(
			&entry.ID,
			&entry.MessageID,
			&entry.UserID,
			&step,
			&entry.Decision,
			&entry.Confidence,
			&entry.Reasoning,
			&details,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		entry.Step = core.AuditStep(step)

		if details != "" {
			if err := json.Unmarshal([]byte(details), &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal entry details: %w", err)
			}
		}

		entry.CreatedAt, err = time.Parse(mysqlTimeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
		}

		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit rows: %w", err)
	}

	return out, nil
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
