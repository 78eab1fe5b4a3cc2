package vendorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

const mysqlTimeFormat = "2006-01-02 15:04:05"

// MySQLStore is a MySQL implementation of the VendorRepository interface
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore creates a new MySQL vendor store
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
		CREATE TABLE IF NOT EXISTS vendors (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			domain VARCHAR(255),
			billing_address TEXT,
			bank_details TEXT,
			phone VARCHAR(64),
			contact_emails TEXT,
			updated_at TIMESTAMP,
			INDEX idx_vendors_user (user_id)
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

// FindByNameFragment returns the user's vendors whose name contains the
// fragment, matched case-insensitively
func (s *MySQLStore) FindByNameFragment(ctx context.Context, userID, fragment string) ([]*core.VendorRecord, error) {
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

		record.UpdatedAt, err = time.Parse(mysqlTimeFormat, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at timestamp: %w", err)
		}

		out = append(out, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vendor rows: %w", err)
	}

	return out, nil
}

// Upsert adds a vendor record or replaces the one sharing its id
func (s *MySQLStore) Upsert(ctx context.Context, record *core.VendorRecord) error {
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
		INSERT INTO vendors (id, user_id, name, domain, billing_address, bank_details, phone, contact_emails, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			domain = VALUES(domain),
			billing_address = VALUES(billing_address),
			bank_details = VALUES(bank_details),
			phone = VALUES(phone),
			contact_emails = VALUES(contact_emails),
			updated_at = VALUES(updated_at)
	`, id, record.UserID, record.Name, record.Domain, record.BillingAddress, record.BankDetails, record.Phone, string(emails), updatedAt.Format(mysqlTimeFormat))
	if err != nil {
		return fmt.Errorf("failed to upsert vendor: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
