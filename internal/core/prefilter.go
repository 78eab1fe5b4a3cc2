package core

import (
	"strings"

	"go.uber.org/zap"
)

// billingKeywords is the curated vocabulary of billing indicators checked
// by the pre-filter
var billingKeywords = []string{
	"invoice",
	"bill",
	"billing",
	"receipt",
	"payment",
	"pay now",
	"due",
	"past due",
	"overdue",
	"statement",
	"charge",
	"subscription",
	"renewal",
	"renew",
	"account number",
	"amount due",
	"balance due",
	"purchase order",
	"remittance",
	"wire transfer",
	"bank transfer",
	"transaction",
	"order confirmation",
	"payment method",
	"direct debit",
}

// RuleFilter is the cheap keyword gate that decides whether a message is
// billing-related at all. It makes no network calls and always answers.
type RuleFilter struct {
	keywords []string
	logger   *zap.Logger
}

// NewRuleFilter creates a rule filter from the built-in vocabulary plus
// any extra keywords supplied through configuration
func NewRuleFilter(extraKeywords []string, logger *zap.Logger) *RuleFilter {
	keywords := make([]string, 0, len(billingKeywords)+len(extraKeywords))
	seen := make(map[string]struct{}, len(billingKeywords)+len(extraKeywords))

	add := func(kw string) {
		normalized := strings.ToLower(strings.TrimSpace(kw))
		if normalized == "" {
			return
		}
		if _, ok := seen[normalized]; ok {
			return
		}
		seen[normalized] = struct{}{}
		keywords = append(keywords, normalized)
	}

	for _, kw := range billingKeywords {
		add(kw)
	}
	for _, kw := range extraKeywords {
		add(kw)
	}

	return &RuleFilter{
		keywords: keywords,
		logger:   logger,
	}
}

// IsBilling reports whether any billing indicator appears in the subject,
// body or snippet, along with the indicators that matched
func (f *RuleFilter) IsBilling(msg *NormalizedMessage) (bool, []string) {
	haystack := strings.ToLower(msg.Subject + "\n" + msg.BodyText + "\n" + msg.Snippet)

	var matched []string
	for _, kw := range f.keywords {
		if strings.Contains(haystack, kw) {
			matched = append(matched, kw)
		}
	}

	if len(matched) > 0 {
		f.logger.Debug("Billing indicators found",
			zap.String("message_id", msg.ID),
			zap.Strings("keywords", matched))
	}

	return len(matched) > 0, matched
}
