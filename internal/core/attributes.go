package core

import (
	"strings"

	"github.com/mikey/llm-billing-guard/internal/utils"
)

// Comparator performs field-by-field fuzzy comparison of extracted
// invoice attributes against a matched vendor's stored record. It is a
// pure function of its inputs: no I/O, no hidden state.
type Comparator struct {
	addressThreshold float64
	bankThreshold    float64
	minDigitGroup    int
	phoneSuffixLen   int
}

// NewComparator creates a comparator with the given equivalence thresholds
func NewComparator(addressThreshold, bankThreshold float64, minDigitGroup, phoneSuffixLen int) *Comparator {
	return &Comparator{
		addressThreshold: addressThreshold,
		bankThreshold:    bankThreshold,
		minDigitGroup:    minDigitGroup,
		phoneSuffixLen:   phoneSuffixLen,
	}
}

// Compare returns the genuine divergences between stored and extracted
// attributes. Missing data on either side of a field is no signal, never
// a change. An empty result means this stage found no risk.
func (c *Comparator) Compare(vendor *VendorMatch, extracted *InvoiceAttributes) []AttributeChange {
	var changes []AttributeChange

	if change, ok := c.compareAddress(vendor.Stored.BillingAddress, extracted.BillingAddress); !ok {
		changes = append(changes, change)
	}
	if change, ok := c.compareBankDetails(vendor.Stored.BankDetails, extracted.BankDetails); !ok {
		changes = append(changes, change)
	}
	if change, ok := c.comparePhone(vendor.Stored.Phone, extracted.Phone); !ok {
		changes = append(changes, change)
	}
	if change, ok := c.compareContactEmail(vendor.Stored.ContactEmails, extracted.ContactEmail); !ok {
		changes = append(changes, change)
	}

	return changes
}

// compareAddress normalizes both sides and accepts similarity at or above
// the address threshold
func (c *Comparator) compareAddress(stored, received string) (AttributeChange, bool) {
	if stored == "" || received == "" {
		return AttributeChange{}, true
	}

	ratio := utils.SimilarityRatio(utils.NormalizeFreeText(stored), utils.NormalizeFreeText(received))
	if ratio >= c.addressThreshold {
		return AttributeChange{}, true
	}

	return AttributeChange{
		Field:           FieldBillingAddress,
		Stored:          stored,
		Received:        received,
		SimilarityScore: ratio,
		Severity:        SeverityHigh,
	}, false
}

// compareBankDetails treats differing account-number digit groups as an
// authoritative mismatch regardless of textual similarity, and otherwise
// falls back to a strict similarity ratio
func (c *Comparator) compareBankDetails(stored, received string) (AttributeChange, bool) {
	if stored == "" || received == "" {
		return AttributeChange{}, true
	}

	ratio := utils.SimilarityRatio(utils.NormalizeFreeText(stored), utils.NormalizeFreeText(received))

	storedGroups := accountDigitGroups(stored, c.minDigitGroup)
	receivedGroups := accountDigitGroups(received, c.minDigitGroup)

	if len(storedGroups) > 0 && len(receivedGroups) > 0 {
		if anyGroupMatches(storedGroups, receivedGroups) {
			return AttributeChange{}, true
		}
		return AttributeChange{
			Field:           FieldBankDetails,
			Stored:          stored,
			Received:        received,
			SimilarityScore: ratio,
			Severity:        SeverityCritical,
		}, false
	}

	if ratio >= c.bankThreshold {
		return AttributeChange{}, true
	}

	return AttributeChange{
		Field:           FieldBankDetails,
		Stored:          stored,
		Received:        received,
		SimilarityScore: ratio,
		Severity:        SeverityCritical,
	}, false
}

// comparePhone compares the trailing digits of both numbers so country
// codes and formatting do not matter
func (c *Comparator) comparePhone(stored, received string) (AttributeChange, bool) {
	if stored == "" || received == "" {
		return AttributeChange{}, true
	}

	storedSuffix := utils.LastNDigits(stored, c.phoneSuffixLen)
	receivedSuffix := utils.LastNDigits(received, c.phoneSuffixLen)
	if storedSuffix == "" || receivedSuffix == "" {
		return AttributeChange{}, true
	}

	if storedSuffix == receivedSuffix {
		return AttributeChange{}, true
	}

	return AttributeChange{
		Field:           FieldPhone,
		Stored:          stored,
		Received:        received,
		SimilarityScore: utils.SimilarityRatio(storedSuffix, receivedSuffix),
		Severity:        SeverityMedium,
	}, false
}

// compareContactEmail accepts an exact match against any known contact
// email, then a same-domain match, and otherwise reports a mismatch
func (c *Comparator) compareContactEmail(stored []string, received string) (AttributeChange, bool) {
	if received == "" || len(stored) == 0 {
		return AttributeChange{}, true
	}

	receivedLower := strings.ToLower(strings.TrimSpace(received))
	receivedDomain := addressDomain(receivedLower)

	bestRatio := 0.0
	for _, known := range stored {
		knownLower := strings.ToLower(strings.TrimSpace(known))
		if knownLower == receivedLower {
			return AttributeChange{}, true
		}
		if receivedDomain != "" && addressDomain(knownLower) == receivedDomain {
			return AttributeChange{}, true
		}
		if ratio := utils.SimilarityRatio(knownLower, receivedLower); ratio > bestRatio {
			bestRatio = ratio
		}
	}

	return AttributeChange{
		Field:           FieldContactEmail,
		Stored:          strings.Join(stored, ", "),
		Received:        received,
		SimilarityScore: bestRatio,
		Severity:        SeverityHigh,
	}, false
}

// accountDigitGroups extracts account-number digit runs after removing
// the separators conventionally used inside them
func accountDigitGroups(s string, minLen int) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.':
			return -1
		}
		return r
	}, s)

	return utils.DigitGroups(cleaned, minLen)
}

func anyGroupMatches(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, g := range a {
		set[g] = struct{}{}
	}
	for _, g := range b {
		if _, ok := set[g]; ok {
			return true
		}
	}
	return false
}
