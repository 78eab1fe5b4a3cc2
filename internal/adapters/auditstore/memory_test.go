package auditstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

func TestMemoryStoreAppendAssignsId(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())

	entry := &core.AuditLogEntry{
		MessageID: "msg-1",
		UserID:    "user-1",
		Step:      core.StepRuleFilter,
		Decision:  true,
		CreatedAt: time.Now(),
	}
	id, err := store.Append(context.Background(), entry)
	require.NoError(t, err)

	assert.NotEmpty(t, id)
	// The caller's entry is left untouched.
	assert.Empty(t, entry.ID)
}

func TestMemoryStoreListByMessagePreservesOrder(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	steps := []core.AuditStep{
		core.StepRuleFilter,
		core.StepClassification,
		core.StepDomainCheck,
		core.StepFinalDecision,
	}
	for _, step := range steps {
		_, err := store.Append(ctx, &core.AuditLogEntry{
			MessageID: "msg-1",
			UserID:    "user-1",
			Step:      step,
			CreatedAt: time.Now(),
		})
		require.NoError(t, err)
	}
	_, err := store.Append(ctx, &core.AuditLogEntry{
		MessageID: "msg-2",
		UserID:    "user-1",
		Step:      core.StepRuleFilter,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	entries, err := store.ListByMessage(ctx, "msg-1", "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, entry := range entries {
		assert.Equal(t, steps[i], entry.Step)
		assert.NotEmpty(t, entry.ID)
	}
}

func TestMemoryStoreListFiltersByUser(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	_, err := store.Append(ctx, &core.AuditLogEntry{MessageID: "msg-1", UserID: "user-1", Step: core.StepRuleFilter})
	require.NoError(t, err)
	_, err = store.Append(ctx, &core.AuditLogEntry{MessageID: "msg-1", UserID: "user-2", Step: core.StepRuleFilter})
	require.NoError(t, err)

	entries, err := store.ListByMessage(ctx, "msg-1", "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "user-1", entries[0].UserID)
}
