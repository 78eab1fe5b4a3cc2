package vendorstore

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

// MemoryStore is an in-memory implementation of the VendorRepository
// interface, useful for tests and single-process deployments
type MemoryStore struct {
	mu      sync.RWMutex
	vendors map[string][]*core.VendorRecord
	logger  *zap.Logger
}

// NewMemoryStore creates a new in-memory vendor store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		vendors: make(map[string][]*core.VendorRecord),
		logger:  logger,
	}
}

// FindByNameFragment returns the user's vendors whose name contains the
// fragment, matched case-insensitively
func (s *MemoryStore) FindByNameFragment(ctx context.Context, userID, fragment string) ([]*core.VendorRecord, error) {
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.VendorRecord
	for _, record := range s.vendors[userID] {
		if strings.Contains(strings.ToLower(record.Name), needle) {
			found := *record
			out = append(out, &found)
		}
	}

	return out, nil
}

// Upsert adds a vendor record or replaces the one sharing its id
func (s *MemoryStore) Upsert(ctx context.Context, record *core.VendorRecord) error {
	stored := *record
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.vendors[stored.UserID]
	for i, existing := range records {
		if existing.ID == stored.ID {
			records[i] = &stored
			return nil
		}
	}
	s.vendors[stored.UserID] = append(records, &stored)

	return nil
}
