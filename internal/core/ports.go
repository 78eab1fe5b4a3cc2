package core

import (
	"context"
)

// Classifier defines the interface to the AI classification service
type Classifier interface {
	// ClassifyMessage determines whether a message is billing-related and
	// refines its type
	ClassifyMessage(ctx context.Context, msg *NormalizedMessage) (*ClassificationResult, error)
}

// VendorRepository defines the read-only interface to a user's known-vendor
// records
type VendorRepository interface {
	// FindByNameFragment returns vendors whose name contains the fragment,
	// matched case-insensitively
	FindByNameFragment(ctx context.Context, userID, fragment string) ([]*VendorRecord, error)
}

// AuditRepository defines the append-only interface to the audit log store
type AuditRepository interface {
	// Append persists one audit entry and returns its assigned id
	Append(ctx context.Context, entry *AuditLogEntry) (string, error)

	// ListByMessage returns all entries recorded for a message, oldest first
	ListByMessage(ctx context.Context, messageID, userID string) ([]*AuditLogEntry, error)
}

// DomainCache defines the interface for caching domain legitimacy analyses
type DomainCache interface {
	// Get retrieves a cached analysis for a registrable domain
	Get(ctx context.Context, domain string) (*DomainCacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *DomainCacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, domain string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
