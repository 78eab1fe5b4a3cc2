package auditstore

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

func TestPostgresAppend(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	createdAt := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), "msg-1", "user-1", "rule_filter", true, 1.0, "matched 2 billing indicator(s): invoice, due", `{"matched_keywords":["invoice","due"]}`, createdAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := store.Append(context.Background(), &core.AuditLogEntry{
		MessageID:  "msg-1",
		UserID:     "user-1",
		Step:       core.StepRuleFilter,
		Decision:   true,
		Confidence: 1.0,
		Reasoning:  "matched 2 billing indicator(s): invoice, due",
		Details:    map[string]any{"matched_keywords": []string{"invoice", "due"}},
		CreatedAt:  createdAt,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListByMessage(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	createdAt := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "message_id", "user_id", "step", "decision", "confidence", "reasoning", "details", "created_at",
	}).AddRow(
		"a1", "msg-1", "user-1", "rule_filter", true, 1.0, "matched", []byte(`{"matched_keywords":["invoice"]}`), createdAt,
	).AddRow(
		"a2", "msg-1", "user-1", "classification", true, 0.95, "bill", []byte(`{"email_type":"bill"}`), createdAt,
	)
	mock.ExpectQuery("FROM audit_log").
		WithArgs("msg-1", "user-1").
		WillReturnRows(rows)

	entries, err := store.ListByMessage(context.Background(), "msg-1", "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, core.StepRuleFilter, entries[0].Step)
	assert.Equal(t, core.StepClassification, entries[1].Step)
	assert.Equal(t, "bill", entries[1].Details["email_type"])
	assert.True(t, entries[0].CreatedAt.Equal(createdAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListByMessageEmpty(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery("FROM audit_log").
		WithArgs("msg-9", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "message_id", "user_id", "step", "decision", "confidence", "reasoning", "details", "created_at",
		}))

	entries, err := store.ListByMessage(context.Background(), "msg-9", "user-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}
