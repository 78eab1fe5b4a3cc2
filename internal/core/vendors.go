package core

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/utils"
)

// VendorMatcher finds the user's known-vendor record for a message's
// sender. Absence of history is a valid outcome, not an error.
type VendorMatcher struct {
	repo   VendorRepository
	logger *zap.Logger
}

// NewVendorMatcher creates a new VendorMatcher
func NewVendorMatcher(repo VendorRepository, logger *zap.Logger) *VendorMatcher {
	return &VendorMatcher{
		repo:   repo,
		logger: logger,
	}
}

// Match looks up the user's vendors by the company-name fragment derived
// from the sender domain and returns the best candidate, or nil when the
// user has no matching history. Datastore failures are logged and treated
// as no match.
func (m *VendorMatcher) Match(ctx context.Context, msg *NormalizedMessage, userID string) *VendorMatch {
	fragment := CompanyFragment(msg.SenderDomain)
	if fragment == "" {
		m.logger.Debug("No company fragment derivable from sender domain",
			zap.String("message_id", msg.ID),
			zap.String("domain", msg.SenderDomain))
		return nil
	}

	candidates, err := m.repo.FindByNameFragment(ctx, userID, fragment)
	if err != nil {
		m.logger.Warn("Vendor lookup failed, treating as no match",
			zap.String("message_id", msg.ID),
			zap.String("user_id", userID),
			zap.String("fragment", fragment),
			zap.Error(err))
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	best := pickCandidate(candidates, fragment)
	similarity := utils.SimilarityRatio(fragment, utils.NormalizeFreeText(best.Name))

	m.logger.Debug("Matched vendor",
		zap.String("message_id", msg.ID),
		zap.String("vendor_id", best.ID),
		zap.String("vendor_name", best.Name),
		zap.Float64("name_similarity", similarity))

	return &VendorMatch{
		CompanyID: best.ID,
		Name:      best.Name,
		Domain:    best.Domain,
		Stored: StoredAttributes{
			BillingAddress: best.BillingAddress,
			BankDetails:    best.BankDetails,
			Phone:          best.Phone,
			ContactEmails:  best.ContactEmails,
		},
		NameSimilarity: similarity,
	}
}

// pickCandidate breaks ties deterministically: highest name similarity to
// the fragment first, then most recently updated, then lowest id
func pickCandidate(candidates []*VendorRecord, fragment string) *VendorRecord {
	type scored struct {
		record     *VendorRecord
		similarity float64
	}

	scoredCandidates := make([]scored, len(candidates))
	for i, c := range candidates {
		scoredCandidates[i] = scored{
			record:     c,
			similarity: utils.SimilarityRatio(fragment, utils.NormalizeFreeText(c.Name)),
		}
	}

	sort.Slice(scoredCandidates, func(i, j int) bool {
		a, b := scoredCandidates[i], scoredCandidates[j]
		if a.similarity != b.similarity {
			return a.similarity > b.similarity
		}
		if !a.record.UpdatedAt.Equal(b.record.UpdatedAt) {
			return a.record.UpdatedAt.After(b.record.UpdatedAt)
		}
		return a.record.ID < b.record.ID
	})

	return scoredCandidates[0].record
}

// CompanyFragment derives the normalized company-name fragment used for
// vendor lookup from a registrable domain: the leading label, lowercased
// ("google.com" becomes "google")
func CompanyFragment(domain string) string {
	label := leadingLabel(strings.ToLower(strings.TrimSpace(domain)))
	return strings.TrimSpace(label)
}
