package vendorstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &PostgresStore{db: db, logger: zap.NewNop()}, mock
}

func TestPostgresFindByNameFragment(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	updatedAt := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "name", "domain", "billing_address", "bank_details", "phone", "contact_emails", "updated_at",
	}).AddRow(
		"v1", "user-1", "Google", "google.com",
		"1600 Amphitheatre Parkway", "12345678", "650-253-0000",
		`["billing@google.com"]`, updatedAt,
	)
	mock.ExpectQuery("FROM vendors").
		WithArgs("user-1", "google").
		WillReturnRows(rows)

	found, err := store.FindByNameFragment(context.Background(), "user-1", "google")
	require.NoError(t, err)
	require.Len(t, found, 1)

	assert.Equal(t, "v1", found[0].ID)
	assert.Equal(t, "Google", found[0].Name)
	assert.Equal(t, []string{"billing@google.com"}, found[0].ContactEmails)
	assert.True(t, found[0].UpdatedAt.Equal(updatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByNameFragmentNoRows(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery("FROM vendors").
		WithArgs("user-1", "unknown").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "name", "domain", "billing_address", "bank_details", "phone", "contact_emails", "updated_at",
		}))

	found, err := store.FindByNameFragment(context.Background(), "user-1", "unknown")
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindEmptyFragmentSkipsQuery(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	found, err := store.FindByNameFragment(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsert(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	updatedAt := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO vendors").
		WithArgs("v1", "user-1", "Google", "google.com", "1600 Amphitheatre Parkway", "12345678", "650-253-0000", `["billing@google.com"]`, updatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Upsert(context.Background(), &core.VendorRecord{
		ID:             "v1",
		UserID:         "user-1",
		Name:           "Google",
		Domain:         "google.com",
		BillingAddress: "1600 Amphitheatre Parkway",
		BankDetails:    "12345678",
		Phone:          "650-253-0000",
		ContactEmails:  []string{"billing@google.com"},
		UpdatedAt:      updatedAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
