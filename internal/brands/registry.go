package brands

import (
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/utils"
)

// defaultDomains is the built-in reference list of well-known billing
// brand domains used for lookalike detection
var defaultDomains = []string{
	"paypal.com",
	"google.com",
	"amazon.com",
	"apple.com",
	"microsoft.com",
	"netflix.com",
	"stripe.com",
	"intuit.com",
	"adobe.com",
	"salesforce.com",
	"dropbox.com",
	"slack.com",
	"atlassian.com",
	"shopify.com",
	"squareup.com",
	"docusign.com",
	"fedex.com",
	"ups.com",
	"dhl.com",
	"verizon.com",
	"att.com",
	"comcast.com",
	"spotify.com",
	"github.com",
	"godaddy.com",
	"mailchimp.com",
	"zoom.us",
}

// Registry holds the reference list of legitimate billing brand domains
// that sender domains are checked against
type Registry struct {
	domains []string
	set     map[string]struct{}
	logger  *zap.Logger
}

// NewRegistry creates a registry from the built-in brand list merged with
// any extra domains supplied through configuration
func NewRegistry(extra []string, logger *zap.Logger) *Registry {
	set := make(map[string]struct{}, len(defaultDomains)+len(extra))
	domains := make([]string, 0, len(defaultDomains)+len(extra))

	add := func(domain string) {
		normalized := strings.ToLower(strings.TrimSpace(domain))
		if normalized == "" {
			return
		}
		if _, ok := set[normalized]; ok {
			return
		}
		set[normalized] = struct{}{}
		domains = append(domains, normalized)
	}

	for _, d := range defaultDomains {
		add(d)
	}
	for _, d := range extra {
		add(d)
	}

	if len(extra) > 0 && logger != nil {
		logger.Info("Extended brand registry", zap.Strings("extra_domains", extra))
	}

	return &Registry{
		domains: domains,
		set:     set,
		logger:  logger,
	}
}

// Contains reports whether domain is an exact entry in the registry
func (r *Registry) Contains(domain string) bool {
	_, ok := r.set[strings.ToLower(strings.TrimSpace(domain))]
	return ok
}

// Domains returns the registered brand domains
func (r *Registry) Domains() []string {
	return r.domains
}

// Closest returns the brand domain with the highest similarity to the
// given domain along with that similarity ratio
func (r *Registry) Closest(domain string) (string, float64) {
	normalized := strings.ToLower(strings.TrimSpace(domain))

	best := ""
	bestRatio := 0.0
	for _, brand := range r.domains {
		ratio := utils.SimilarityRatio(normalized, brand)
		if ratio > bestRatio {
			best = brand
			bestRatio = ratio
		}
	}

	return best, bestRatio
}

// MatchName scans a display name for a known brand label and returns the
// brand's domain when one is mentioned. "Google Billing" matches
// google.com through its leading label.
func (r *Registry) MatchName(name string) (string, bool) {
	lowered := strings.ToLower(name)
	if lowered == "" {
		return "", false
	}

	words := strings.FieldsFunc(lowered, func(c rune) bool {
		return !('a' <= c && c <= 'z' || '0' <= c && c <= '9')
	})
	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[w] = struct{}{}
	}

	for _, brand := range r.domains {
		label := brand
		if idx := strings.IndexByte(brand, '.'); idx > 0 {
			label = brand[:idx]
		}
		if len(label) < 3 {
			continue
		}
		if _, ok := wordSet[label]; ok {
			return brand, true
		}
	}

	return "", false
}
