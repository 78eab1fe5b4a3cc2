package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestComparator() *Comparator {
	return NewComparator(0.85, 0.90, 6, 10)
}

func vendorWith(stored StoredAttributes) *VendorMatch {
	return &VendorMatch{
		CompanyID: "v1",
		Name:      "Acme",
		Domain:    "acme.example",
		Stored:    stored,
	}
}

func TestCompareNoDivergence(t *testing.T) {
	c := newTestComparator()

	vendor := vendorWith(StoredAttributes{
		BillingAddress: "123 Main Street, Springfield, IL 62704",
		BankDetails:    "Account number: 12345678",
		Phone:          "+1 (555) 123-4567",
		ContactEmails:  []string{"billing@acme.example"},
	})
	extracted := &InvoiceAttributes{
		BillingAddress: "123 Main Street Springfield IL 62704",
		BankDetails:    "12345678",
		Phone:          "555.123.4567",
		ContactEmail:   "billing@acme.example",
	}

	assert.Empty(t, c.Compare(vendor, extracted))
}

func TestCompareIsIdempotent(t *testing.T) {
	c := newTestComparator()

	vendor := vendorWith(StoredAttributes{
		BillingAddress: "123 Main Street",
		BankDetails:    "12345678",
		Phone:          "555-123-4567",
		ContactEmails:  []string{"ap@acme.example"},
	})
	extracted := &InvoiceAttributes{
		BillingAddress: "999 Elm Avenue",
		BankDetails:    "99999999",
		Phone:          "555-999-8888",
		ContactEmail:   "billing@evil.example",
	}

	first := c.Compare(vendor, extracted)
	second := c.Compare(vendor, extracted)

	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
}

func TestCompareMissingDataIsNoSignal(t *testing.T) {
	c := newTestComparator()

	vendor := vendorWith(StoredAttributes{
		BillingAddress: "123 Main Street",
	})
	extracted := &InvoiceAttributes{
		BankDetails: "99999999",
		Phone:       "555-123-4567",
	}

	// Address present only on the stored side, bank and phone only on the
	// received side, email on neither: no field has both sides.
	assert.Empty(t, c.Compare(vendor, extracted))
}

func TestCompareBankDigitGroupsOverrideSimilarity(t *testing.T) {
	c := newTestComparator()

	// Near-identical text, but the account numbers differ in one digit.
	vendor := vendorWith(StoredAttributes{BankDetails: "account number 12345678"})
	extracted := &InvoiceAttributes{BankDetails: "account number 12345679"}

	changes := c.Compare(vendor, extracted)
	require.Len(t, changes, 1)
	assert.Equal(t, FieldBankDetails, changes[0].Field)
	assert.Equal(t, SeverityCritical, changes[0].Severity)
	assert.Greater(t, changes[0].SimilarityScore, 0.90, "textual similarity must not rescue a digit mismatch")
}

func TestCompareBankDigitGroupsMatch(t *testing.T) {
	c := newTestComparator()

	vendor := vendorWith(StoredAttributes{BankDetails: "IBAN DE44 5001 0517 5407 3249 31"})
	extracted := &InvoiceAttributes{BankDetails: "Wire to DE44-5001-0517-5407-3249-31 (Commerzbank)"}

	assert.Empty(t, c.Compare(vendor, extracted))
}

func TestCompareBankFallsBackToSimilarity(t *testing.T) {
	c := newTestComparator()

	// Neither side carries a long digit group, so the strict ratio decides.
	vendor := vendorWith(StoredAttributes{BankDetails: "First National Bank of Springfield"})
	extracted := &InvoiceAttributes{BankDetails: "Completely Different Credit Union"}

	changes := c.Compare(vendor, extracted)
	require.Len(t, changes, 1)
	assert.Equal(t, SeverityCritical, changes[0].Severity)
}

func TestCompareAddressBoundaryInclusive(t *testing.T) {
	c := newTestComparator()

	// Twenty characters with three substitutions: similarity exactly 0.85.
	vendor := vendorWith(StoredAttributes{BillingAddress: "abcdefghijklmnopqrst"})
	extracted := &InvoiceAttributes{BillingAddress: "abcdefghijklmnopqxyz"}

	assert.Empty(t, c.Compare(vendor, extracted), "similarity exactly at the threshold is equivalent")
}

func TestCompareAddressBelowThreshold(t *testing.T) {
	c := newTestComparator()

	vendor := vendorWith(StoredAttributes{BillingAddress: "123 Main Street, Springfield, IL"})
	extracted := &InvoiceAttributes{BillingAddress: "999 Elm Avenue, Shelbyville, KY"}

	changes := c.Compare(vendor, extracted)
	require.Len(t, changes, 1)
	assert.Equal(t, FieldBillingAddress, changes[0].Field)
	assert.Equal(t, SeverityHigh, changes[0].Severity)
	assert.Less(t, changes[0].SimilarityScore, 0.85)
}

func TestComparePhoneLastDigits(t *testing.T) {
	c := newTestComparator()

	// Country code and formatting differ, trailing ten digits agree.
	vendor := vendorWith(StoredAttributes{Phone: "+1 (555) 123-4567"})
	extracted := &InvoiceAttributes{Phone: "001 555 123 4567"}

	assert.Empty(t, c.Compare(vendor, extracted))
}

func TestComparePhoneMismatch(t *testing.T) {
	c := newTestComparator()

	vendor := vendorWith(StoredAttributes{Phone: "555-123-4567"})
	extracted := &InvoiceAttributes{Phone: "555-999-8888"}

	changes := c.Compare(vendor, extracted)
	require.Len(t, changes, 1)
	assert.Equal(t, FieldPhone, changes[0].Field)
	assert.Equal(t, SeverityMedium, changes[0].Severity)
}

func TestCompareContactEmailDomainMatch(t *testing.T) {
	c := newTestComparator()

	vendor := vendorWith(StoredAttributes{ContactEmails: []string{"ap@acme.example"}})
	extracted := &InvoiceAttributes{ContactEmail: "billing@acme.example"}

	assert.Empty(t, c.Compare(vendor, extracted))
}

func TestCompareContactEmailMismatch(t *testing.T) {
	c := newTestComparator()

	vendor := vendorWith(StoredAttributes{ContactEmails: []string{"ap@acme.example", "billing@acme.example"}})
	extracted := &InvoiceAttributes{ContactEmail: "acme-billing@freemail.example"}

	changes := c.Compare(vendor, extracted)
	require.Len(t, changes, 1)
	assert.Equal(t, FieldContactEmail, changes[0].Field)
	assert.Equal(t, SeverityHigh, changes[0].Severity)
}

func TestCompareScenarioDifferentAccounts(t *testing.T) {
	c := newTestComparator()

	vendor := vendorWith(StoredAttributes{BankDetails: "12345678"})
	extracted := &InvoiceAttributes{BankDetails: "99999999"}

	changes := c.Compare(vendor, extracted)
	require.Len(t, changes, 1)
	assert.Equal(t, FieldBankDetails, changes[0].Field)
	assert.Equal(t, SeverityCritical, changes[0].Severity)
}
