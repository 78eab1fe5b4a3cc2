package vendorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

// PostgresStore is a PostgreSQL implementation of the VendorRepository interface
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL vendor store
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
		CREATE TABLE IF NOT EXISTS vendors (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			domain TEXT,
			billing_address TEXT,
			bank_details TEXT,
			phone TEXT,
			contact_emails TEXT,
			updated_at TIMESTAMPTZ
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

	return &PostgresStore{
		db:     db,
		logger: logger,
	}, nil
}

// FindByNameFragment returns the user's vendors whose name contains the
// fragment, matched case-insensitively
func (s *PostgresStore) FindByNameFragment(ctx context.Context, userID, fragment string) ([]*core.VendorRecord, error) {
	needle := strings.TrimSpace(fragment)
	if needle == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, domain, billing_address, bank_details, phone, contact_emails, updated_at
		FROM vendors
		WHERE user_id = $1 AND name ILIKE '%' || $2 || '%'
	`, userID, needle)
	if err != nil {
		return nil, fmt.Errorf("failed to query vendors: %w", err)
	}
	defer rows.Close()

	var out []*core.VendorRecord
	for rows.Next() {
		var record core.VendorRecord
		var emails string

		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.Name,
			&record.Domain,
			&record.BillingAddress,
			&record.BankDetails,
			&record.Phone,
			&emails,
			&record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vendor row: %w", err)
		}

		if emails != "" {
			if err := json.Unmarshal([]byte(emails), &record.ContactEmails); err != nil {
				return nil, fmt.Errorf("failed to unmarshal contact emails: %w", err)
			}
		}

		out = append(out, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vendor rows: %w", err)
	}

	return out, nil
}

// Upsert adds a vendor record or replaces the one sharing its id
func (s *PostgresStore) Upsert(ctx context.Context, record *core.VendorRecord) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			domain = EXCLUDED.domain,
			billing_address = EXCLUDED.billing_address,
			bank_details = EXCLUDED.bank_details,
			phone = EXCLUDED.phone,
			contact_emails = EXCLUDED.contact_emails,
			updated_at = EXCLUDED.updated_at
	`, id, record.UserID, record.Name, record.Domain, record.BillingAddress, record.BankDetails, record.Phone, string(emails), updatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert vendor: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
