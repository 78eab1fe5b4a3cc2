package auditstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

// SQLiteStore is a SQLite implementation of the AuditRepository
// interface. The table is append-only: the adapter issues no UPDATE or
// DELETE statements. The seq column fixes entry order since stage
// timestamps can collide within one run.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a new SQLite audit store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			message_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			step TEXT NOT NULL,
			decision BOOLEAN,
			confidence REAL,
			reasoning TEXT,
			details TEXT,
			created_at TIMESTAMP
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

	return &SQLiteStore{
		db:     db,
		logger: logger,
	}, nil
}

// Append persists one audit entry and returns its assigned id
func (s *SQLiteStore) Append(ctx context.Context, entry *core.AuditLogEntry) (string, error) {
	id := uuid.NewString()

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entry details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, message_id, user_id, step, decision, confidence, reasoning, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, entry.MessageID, entry.UserID, string(entry.Step), entry.Decision, entry.Confidence, entry.Reasoning, string(details), entry.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return id, nil
}

// ListByMessage returns all entries recorded for a message, oldest first
func (s *SQLiteStore) ListByMessage(ctx context.Context, messageID, userID string) ([]*core.AuditLogEntry, error) {
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

		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
		}
		entry.CreatedAt = parsed

		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit rows: %w", err)
	}

	return out, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
