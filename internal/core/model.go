package core

import (
	"fmt"
	"strings"
	"time"
)

// NormalizedMessage is the canonical record extracted from one inbound
// email. It is created once per message and never mutated afterwards.
type NormalizedMessage struct {
	ID             string
	SenderAddress  string
	SenderName     string
	SenderDomain   string
	Subject        string
	BodyText       string
	Snippet        string
	AttachmentText string
	ReceivedAt     time.Time
}

// EmailType is the refined billing category assigned by the classifier
type EmailType string

const (
	EmailTypeBill    EmailType = "bill"
	EmailTypeReceipt EmailType = "receipt"
	EmailTypeOther   EmailType = "other"
)

// ParseEmailType maps a classifier-reported type string onto the known
// categories. Unknown values are an error so callers can fall back
// instead of trusting garbage.
func ParseEmailType(s string) (EmailType, error) {
	switch EmailType(strings.ToLower(strings.TrimSpace(s))) {
	case EmailTypeBill:
		return EmailTypeBill, nil
	case EmailTypeReceipt:
		return EmailTypeReceipt, nil
	case EmailTypeOther:
		return EmailTypeOther, nil
	}
	return "", fmt.Errorf("unknown email type %q", s)
}

// ClassificationResult represents the outcome of AI-assisted type
// classification
type ClassificationResult struct {
	IsBilling  bool
	EmailType  EmailType
	Confidence float64
	Reasoning  string
	ModelUsed  string
	AnalyzedAt time.Time
}

// DomainAnalysis represents the legitimacy assessment of a sender domain.
// Immutable once produced.
type DomainAnalysis struct {
	Domain       string
	IsLegitimate bool
	Confidence   float64
	Reasons      []string
}

// VendorRecord is a stored known-vendor row owned by one user
type VendorRecord struct {
	ID             string
	UserID         string
	Name           string
	Domain         string
	BillingAddress string
	BankDetails    string
	Phone          string
	ContactEmails  []string
	UpdatedAt      time.Time
}

// StoredAttributes carries the on-file vendor fields the comparator
// checks extracted invoice attributes against
type StoredAttributes struct {
	BillingAddress string
	BankDetails    string
	Phone          string
	ContactEmails  []string
}

// VendorMatch is the read-only snapshot of the vendor record matched for
// one message, or absent when the user has no history for the sender
type VendorMatch struct {
	CompanyID      string
	Name           string
	Domain         string
	Stored         StoredAttributes
	NameSimilarity float64
}

// InvoiceAttributes holds the attribute values extracted from the
// message text. Empty string means the field was not found.
type InvoiceAttributes struct {
	BillingAddress string
	BankDetails    string
	Phone          string
	ContactEmail   string
}

// AttributeField identifies which vendor attribute diverged
type AttributeField string

const (
	FieldBillingAddress AttributeField = "billing_address"
	FieldBankDetails    AttributeField = "bank_details"
	FieldPhone          AttributeField = "phone"
	FieldContactEmail   AttributeField = "contact_email"
)

// Severity ranks how fraud-relevant an attribute divergence is
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// AttributeChange represents one genuine divergence between a stored
// vendor attribute and the value extracted from the message
type AttributeChange struct {
	Field           AttributeField
	Stored          string
	Received        string
	SimilarityScore float64
	Severity        Severity
}

// AuditStep identifies the pipeline stage an audit entry belongs to
type AuditStep string

const (
	StepRuleFilter       AuditStep = "rule_filter"
	StepClassification   AuditStep = "classification"
	StepDomainCheck      AuditStep = "domain_check"
	StepVendorMatch      AuditStep = "vendor_match"
	StepAttributeCompare AuditStep = "attribute_compare"
	StepFinalDecision    AuditStep = "final_decision"
)

// AuditLogEntry is one append-only record of a stage that actually ran.
// Entries are never updated or deleted.
type AuditLogEntry struct {
	ID         string
	MessageID  string
	UserID     string
	Step       AuditStep
	Decision   bool
	Confidence float64
	Reasoning  string
	Details    map[string]any
	CreatedAt  time.Time
}

// VerdictLabel is the final decision label for one pipeline run
type VerdictLabel string

const (
	LabelSafe       VerdictLabel = "safe"
	LabelUnsure     VerdictLabel = "unsure"
	LabelFraudulent VerdictLabel = "fraudulent"
	LabelNotBilling VerdictLabel = "not_billing"
)

// Verdict is the terminal output of one pipeline run
type Verdict struct {
	Label            VerdictLabel
	Confidence       float64
	Escalate         bool
	HaltReason       string
	RequiresResearch bool
}

// DomainCacheEntry is a cached domain legitimacy analysis
type DomainCacheEntry struct {
	Domain    string
	Analysis  DomainAnalysis
	LastSeen  time.Time
	ExpiresAt time.Time
}
