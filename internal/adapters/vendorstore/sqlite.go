package vendorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

// SQLiteStore is a SQLite implementation of the VendorRepository interface
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a new SQLite vendor store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vendors (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			domain TEXT,
			billing_address TEXT,
			bank_details TEXT,
			phone TEXT,
			contact_emails TEXT,
			updated_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_vendors_user ON vendors(user_id)
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

// FindByNameFragment returns the user's vendors whose name contains the
// fragment, matched case-insensitively
func (s *SQLiteStore) FindByNameFragment(ctx context.Context, userID, fragment string) ([]*core.VendorRecord, error) {
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, domain, billing_address, bank_details, phone, contact_emails, updated_at
		FROM vendors
		WHERE user_id = ? AND LOWER(name) LIKE ?
	`, userID, "%"+needle+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query vendors: %w", err)
	}
	defer rows.Close()

	var out []*core.VendorRecord
	for rows.Next() {
		record, err := scanVendorRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vendor rows: %w", err)
	}

	return out, nil
}

// Upsert adds a vendor record or replaces the one sharing its id
func (s *SQLiteStore) Upsert(ctx context.Context, record *core.VendorRecord) error {
	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}

	emails, err := json.Marshal(record.ContactEmails)
	if err != nil {
		return fmt.Errorf("failed to marshal contact emails: %w", err)
	}

	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO vendors (id, user_id, name, domain, billing_address, bank_details, phone, contact_emails, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, record.UserID, record.Name, record.Domain, record.BillingAddress, record.BankDetails, record.Phone, string(emails), updatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert vendor: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanVendorRow(rows *sql.Rows) (*core.VendorRecord, error) {
	var record core.VendorRecord
	var emails, updatedAt string

	if err := rows.Scan(
		&record.ID,
		&record.UserID,
		&record.Name,
		&record.Domain,
		&record.BillingAddress,
		&record.BankDetails,
		&record.Phone,
		&emails,
		&updatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan vendor row: %w", err)
	}

	if emails != "" {
		if err := json.Unmarshal([]byte(emails), &record.ContactEmails); err != nil {
			return nil, fmt.Errorf("failed to unmarshal contact emails: %w", err)
		}
	}

	parsed, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at timestamp: %w", err)
	}
	record.UpdatedAt = parsed

	return &record, nil
}
