package core

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/utils"
)

// Label-scanning patterns for invoice attributes. Extraction is
// deterministic: the same message text always yields the same attributes.
var (
	bankPattern = regexp.MustCompile(`(?i)(?:account\s+(?:no\.?|number|#)|iban|routing\s+number|sort\s+code|swift(?:\s+code)?|bic|account)\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9 \-]{4,40})`)

	phonePattern = regexp.MustCompile(`(?i)(?:phone|tel(?:ephone)?|mobile|fax|call\s+us(?:\s+at)?)\s*[:#]?\s*(\+?[0-9][0-9 ().\-]{6,20})`)

	addressLabelPattern = regexp.MustCompile(`(?i)^[>\s]*(?:billing\s+address|remit(?:tance)?\s+(?:to|address)|pay(?:able)?\s+to|mailing\s+address)\s*[:#]?\s*(.*)$`)

	labelledEmailPattern = regexp.MustCompile(`(?i)(?:contact|e-?mail|questions|support|billing)(?:\s+us)?(?:\s+at)?\s*[:<]?\s*([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})`)

	bareEmailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// AttributeExtractor pulls invoice attributes out of message text by
// scanning for labelled values
type AttributeExtractor struct {
	logger *zap.Logger
}

// NewAttributeExtractor creates a new AttributeExtractor
func NewAttributeExtractor(logger *zap.Logger) *AttributeExtractor {
	return &AttributeExtractor{
		logger: logger,
	}
}

// Extract scans the message body and attachment text for billing
// attributes. Fields that cannot be found are left empty.
func (e *AttributeExtractor) Extract(msg *NormalizedMessage) *InvoiceAttributes {
	text := msg.BodyText
	if msg.AttachmentText != "" {
		text += "\n" + msg.AttachmentText
	}

	attrs := &InvoiceAttributes{
		BillingAddress: extractAddress(text),
		BankDetails:    extractBankDetails(text),
		Phone:          extractPhone(text),
		ContactEmail:   extractContactEmail(text),
	}

	e.logger.Debug("Extracted invoice attributes",
		zap.String("message_id", msg.ID),
		zap.Bool("has_address", attrs.BillingAddress != ""),
		zap.Bool("has_bank_details", attrs.BankDetails != ""),
		zap.Bool("has_phone", attrs.Phone != ""),
		zap.Bool("has_contact_email", attrs.ContactEmail != ""))

	return attrs
}

func extractBankDetails(text string) string {
	m := bankPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}

	candidate := strings.TrimSpace(m[1])
	// Labels followed by prose rather than a number are not bank details.
	if len(utils.Digits(candidate)) < 4 {
		return ""
	}

	return candidate
}

func extractPhone(text string) string {
	m := phonePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}

	candidate := strings.TrimSpace(m[1])
	if len(utils.Digits(candidate)) < 7 {
		return ""
	}

	return candidate
}

// extractAddress finds an address label and takes the inline value, or
// when the label stands alone, joins the following lines
func extractAddress(text string) string {
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		m := addressLabelPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		if inline := strings.TrimSpace(m[1]); inline != "" {
			return inline
		}

		var parts []string
		for j := i + 1; j < len(lines) && len(parts) < 2; j++ {
			next := strings.TrimSpace(lines[j])
			if next == "" {
				break
			}
			parts = append(parts, next)
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
	}

	return ""
}

func extractContactEmail(text string) string {
	if m := labelledEmailPattern.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1])
	}

	if m := bareEmailPattern.FindString(text); m != "" {
		return strings.ToLower(m)
	}

	return ""
}
