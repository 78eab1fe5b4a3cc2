package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRuleFilterMatchesIndicators(t *testing.T) {
	f := NewRuleFilter(nil, zap.NewNop())

	tests := []struct {
		name string
		msg  NormalizedMessage
	}{
		{"subject keyword", NormalizedMessage{Subject: "Your invoice is ready"}},
		{"body keyword", NormalizedMessage{BodyText: "Please submit payment by Friday"}},
		{"case insensitive", NormalizedMessage{Subject: "INVOICE #42"}},
		{"snippet keyword", NormalizedMessage{Snippet: "monthly statement attached"}},
		{"phrase keyword", NormalizedMessage{BodyText: "your account number is 1234"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, matched := f.IsBilling(&tt.msg)
			assert.True(t, ok)
			assert.NotEmpty(t, matched)
		})
	}
}

func TestRuleFilterNoIndicators(t *testing.T) {
	f := NewRuleFilter(nil, zap.NewNop())

	ok, matched := f.IsBilling(&NormalizedMessage{
		Subject:  "Lunch on Friday?",
		BodyText: "Shall we try the new place at noon?",
		Snippet:  "Shall we try the new place at noon?",
	})

	assert.False(t, ok)
	assert.Empty(t, matched)
}

func TestRuleFilterExtraKeywords(t *testing.T) {
	f := NewRuleFilter([]string{"Faktura"}, zap.NewNop())

	ok, matched := f.IsBilling(&NormalizedMessage{Subject: "faktura 2024/001"})
	assert.True(t, ok)
	assert.Contains(t, matched, "faktura")
}

func TestRuleFilterReportsAllMatches(t *testing.T) {
	f := NewRuleFilter(nil, zap.NewNop())

	ok, matched := f.IsBilling(&NormalizedMessage{
		Subject:  "Invoice overdue",
		BodyText: "Your subscription renewal payment is past due.",
	})

	assert.True(t, ok)
	assert.Contains(t, matched, "invoice")
	assert.Contains(t, matched, "subscription")
	assert.Contains(t, matched, "payment")
}
