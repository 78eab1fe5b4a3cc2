package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/utils"
)

func newTestNormalizer() *Normalizer {
	logger := zap.NewNop()
	return NewNormalizer(utils.NewTextProcessor(logger), logger)
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer()

	msg, err := n.Normalize(&RawMessage{
		From:       "Google Billing <Billing@Google.COM>",
		Subject:    "  Invoice #42  ",
		Body:       "Your invoice is attached.\nAmount due: $10.00",
		ReceivedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "billing@google.com", msg.SenderAddress)
	assert.Equal(t, "Google Billing", msg.SenderName)
	assert.Equal(t, "google.com", msg.SenderDomain)
	assert.Equal(t, "Invoice #42", msg.Subject)
	assert.Equal(t, "Your invoice is attached. Amount due: $10.00", msg.Snippet)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), msg.ReceivedAt)
}

func TestNormalizeUnparsableFrom(t *testing.T) {
	n := newTestNormalizer()

	msg, err := n.Normalize(&RawMessage{From: "not an address", Body: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "not an address", msg.SenderAddress)
	assert.Empty(t, msg.SenderName)
	assert.Empty(t, msg.SenderDomain)
}

func TestNormalizeNilMessage(t *testing.T) {
	n := newTestNormalizer()

	_, err := n.Normalize(nil)
	assert.Error(t, err)
}

func TestNormalizeDefaultsReceivedAt(t *testing.T) {
	n := newTestNormalizer()

	msg, err := n.Normalize(&RawMessage{From: "a@b.com", Body: "x"})
	require.NoError(t, err)
	assert.False(t, msg.ReceivedAt.IsZero())
}

func TestNormalizeSnippetLength(t *testing.T) {
	n := newTestNormalizer()

	msg, err := n.Normalize(&RawMessage{
		From: "a@b.com",
		Body: strings.Repeat("invoice payment due ", 50),
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(msg.Snippet)), snippetLength+3)
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"bare domain", "google.com", "google.com"},
		{"subdomain stripped", "mail.google.com", "google.com"},
		{"deep subdomain", "a.b.c.example.org", "example.org"},
		{"multi-part suffix", "shop.example.co.uk", "example.co.uk"},
		{"uppercased", "Mail.GOOGLE.com", "google.com"},
		{"trailing dot", "google.com.", "google.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RegistrableDomain(tt.host))
		})
	}
}

func TestParseSender(t *testing.T) {
	address, name := parseSender(`"Acme Billing" <ap@acme.example>`)
	assert.Equal(t, "ap@acme.example", address)
	assert.Equal(t, "Acme Billing", name)

	address, name = parseSender("plain@example.com")
	assert.Equal(t, "plain@example.com", address)
	assert.Empty(t, name)

	address, name = parseSender("")
	assert.Empty(t, address)
	assert.Empty(t, name)
}
