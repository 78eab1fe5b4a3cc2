package core

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"

	"github.com/mikey/llm-billing-guard/internal/utils"
)

// snippetLength is the maximum rune length of the stored body snippet
const snippetLength = 160

// RawMessage carries the unprocessed parts of an inbound email as the
// surrounding system hands them over
type RawMessage struct {
	From           string
	Subject        string
	Body           string
	AttachmentText string
	ReceivedAt     time.Time
}

// Normalizer converts raw messages into the canonical record the
// pipeline operates on
type Normalizer struct {
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewNormalizer creates a new Normalizer
func NewNormalizer(textProcessor *utils.TextProcessor, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Normalize builds an immutable NormalizedMessage from raw message parts
func (n *Normalizer) Normalize(raw *RawMessage) (*NormalizedMessage, error) {
	if raw == nil {
		return nil, fmt.Errorf("raw message is nil")
	}

	address, name := parseSender(raw.From)
	domain := addressDomain(address)

	body := n.textProcessor.SanitizeUTF8(raw.Body)
	subject := n.textProcessor.SanitizeUTF8(strings.TrimSpace(raw.Subject))

	receivedAt := raw.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	msg := &NormalizedMessage{
		ID:             uuid.NewString(),
		SenderAddress:  address,
		SenderName:     name,
		SenderDomain:   RegistrableDomain(domain),
		Subject:        subject,
		BodyText:       body,
		Snippet:        n.textProcessor.Snippet(body, snippetLength),
		AttachmentText: n.textProcessor.SanitizeUTF8(raw.AttachmentText),
		ReceivedAt:     receivedAt,
	}

	n.logger.Debug("Normalized message",
		zap.String("message_id", msg.ID),
		zap.String("sender", msg.SenderAddress),
		zap.String("sender_domain", msg.SenderDomain))

	return msg, nil
}

// parseSender splits a From header into address and display name. A
// header that does not parse as an address list is used verbatim as the
// address.
func parseSender(from string) (string, string) {
	trimmed := strings.TrimSpace(from)
	if trimmed == "" {
		return "", ""
	}

	parsed, err := mail.ParseAddress(trimmed)
	if err != nil {
		return strings.ToLower(trimmed), ""
	}

	return strings.ToLower(parsed.Address), strings.TrimSpace(parsed.Name)
}

// addressDomain returns the host part of an email address
func addressDomain(address string) string {
	idx := strings.LastIndexByte(address, '@')
	if idx < 0 || idx == len(address)-1 {
		return ""
	}
	return address[idx+1:]
}

// RegistrableDomain reduces a host to its registrable domain (eTLD+1) in
// punycoded ASCII form. Hosts that cannot be reduced (bare TLDs, IP
// literals, garbage) are returned lowercased as-is.
func RegistrableDomain(host string) string {
	lowered := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if lowered == "" {
		return ""
	}

	ascii, err := idna.Lookup.ToASCII(lowered)
	if err != nil {
		ascii = lowered
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(ascii)
	if err != nil {
		return ascii
	}

	return etld1
}

// UnicodeDomain renders a punycoded domain in its unicode form for
// visual inspection. Invalid input is returned unchanged.
func UnicodeDomain(domain string) string {
	u, err := idna.Lookup.ToUnicode(domain)
	if err != nil {
		return domain
	}
	return u
}
