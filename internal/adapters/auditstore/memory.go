package auditstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

// MemoryStore is an in-memory implementation of the AuditRepository
// interface. Entries are only ever appended, matching the durable
// backends.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*core.AuditLogEntry
	logger  *zap.Logger
}

// NewMemoryStore creates a new in-memory audit store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{logger: logger}
}

// Append persists one audit entry and returns its assigned id. The
// caller's entry is not mutated.
func (s *MemoryStore) Append(ctx context.Context, entry *core.AuditLogEntry) (string, error) {
	stored := *entry
	stored.ID = uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &stored)

	return stored.ID, nil
}

// ListByMessage returns all entries recorded for a message, oldest first
func (s *MemoryStore) ListByMessage(ctx context.Context, messageID, userID string) ([]*core.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.AuditLogEntry
	for _, entry := range s.entries {
		if entry.MessageID == messageID && entry.UserID == userID {
			found := *entry
			out = append(out, &found)
		}
	}

	return out, nil
}
