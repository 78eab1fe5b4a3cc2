package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/brands"
	"github.com/mikey/llm-billing-guard/internal/utils"
)

// Trigger weights. A critical trigger caps confidence at 0.3 no matter
// what else fired.
const (
	weightLookalike    = 0.90
	weightHomograph    = 0.90
	weightEmbeddedName = 0.80
	weightNameMismatch = 0.75
	weightBadTLD       = 0.55
	weightConfusables  = 0.40
	weightStructural   = 0.30

	legitimateConfidence  = 0.97
	criticalConfidenceCap = 0.30
	minConfidence         = 0.05
)

// domainTrigger is one fired legitimacy check
type domainTrigger struct {
	reason   string
	weight   float64
	critical bool
}

// DomainAnalyzer inspects sender domains for typosquatting, suspicious
// TLDs and structural anomalies. Analyses of the domain itself are cached
// by registrable domain; the display-name check depends on the individual
// message and is evaluated on every call.
type DomainAnalyzer struct {
	registry            *brands.Registry
	cache               DomainCache
	cacheEnabled        bool
	cacheTTL            time.Duration
	similarityThreshold float64
	maxHyphens          int
	maxDigitRatio       float64
	suspiciousTLDs      map[string]struct{}
	logger              *zap.Logger
}

// NewDomainAnalyzer creates a new domain legitimacy analyzer
func NewDomainAnalyzer(
	registry *brands.Registry,
	cache DomainCache,
	cacheEnabled bool,
	cacheTTL time.Duration,
	similarityThreshold float64,
	maxHyphens int,
	maxDigitRatio float64,
	suspiciousTLDs []string,
	logger *zap.Logger,
) *DomainAnalyzer {
	tlds := make(map[string]struct{}, len(suspiciousTLDs))
	for _, tld := range suspiciousTLDs {
		tlds[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tld), "."))] = struct{}{}
	}

	return &DomainAnalyzer{
		registry:            registry,
		cache:               cache,
		cacheEnabled:        cacheEnabled,
		cacheTTL:            cacheTTL,
		similarityThreshold: similarityThreshold,
		maxHyphens:          maxHyphens,
		maxDigitRatio:       maxDigitRatio,
		suspiciousTLDs:      tlds,
		logger:              logger,
	}
}

// Analyze assesses the legitimacy of the message's sender domain. It
// never fails: cache errors are logged and the analysis recomputed.
func (a *DomainAnalyzer) Analyze(ctx context.Context, msg *NormalizedMessage) *DomainAnalysis {
	domain := msg.SenderDomain
	if domain == "" {
		return &DomainAnalysis{
			Domain:       "",
			IsLegitimate: false,
			Confidence:   0.1,
			Reasons:      []string{"sender address has no usable domain"},
		}
	}

	intrinsic := a.intrinsicAnalysis(ctx, domain)

	// The display-name check is per-message and never cached.
	result := *intrinsic
	if trigger, ok := a.displayNameMismatch(msg, domain); ok {
		result.IsLegitimate = false
		result.Reasons = append(append([]string{}, intrinsic.Reasons...), trigger.reason)
		if c := 1.0 - trigger.weight; c < result.Confidence {
			result.Confidence = c
		}
		if trigger.critical && result.Confidence > criticalConfidenceCap {
			result.Confidence = criticalConfidenceCap
		}
	}

	if !result.IsLegitimate {
		a.logger.Info("Sender domain failed legitimacy checks",
			zap.String("message_id", msg.ID),
			zap.String("domain", domain),
			zap.Strings("reasons", result.Reasons))
	}

	return &result
}

// intrinsicAnalysis runs the checks that depend only on the domain,
// consulting the cache first
func (a *DomainAnalyzer) intrinsicAnalysis(ctx context.Context, domain string) *DomainAnalysis {
	if a.cacheEnabled {
		if entry, err := a.cache.Get(ctx, domain); err == nil {
			a.logger.Debug("Domain cache hit", zap.String("domain", domain))
			return &entry.Analysis
		}
	}

	triggers := a.domainTriggers(domain)
	analysis := &DomainAnalysis{
		Domain:       domain,
		IsLegitimate: len(triggers) == 0,
		Confidence:   combineTriggers(triggers),
		Reasons:      triggerReasons(triggers),
	}

	if a.cacheEnabled {
		now := time.Now()
		entry := &DomainCacheEntry{
			Domain:    domain,
			Analysis:  *analysis,
			LastSeen:  now,
			ExpiresAt: now.Add(a.cacheTTL),
		}
		if err := a.cache.Set(ctx, entry); err != nil {
			a.logger.Error("Failed to cache domain analysis",
				zap.String("domain", domain),
				zap.Error(err))
		}
	}

	return analysis
}

// domainTriggers applies the suspicious-TLD, typosquatting/homograph and
// structural checks to a registrable domain
func (a *DomainAnalyzer) domainTriggers(domain string) []domainTrigger {
	// An exact brand domain passes the intrinsic checks outright.
	if a.registry.Contains(domain) {
		return nil
	}

	var triggers []domainTrigger

	if tld := topLevelLabel(domain); tld != "" {
		if _, ok := a.suspiciousTLDs[tld]; ok {
			triggers = append(triggers, domainTrigger{
				reason: fmt.Sprintf("top-level domain .%s has low reputation", tld),
				weight: weightBadTLD,
			})
		}
	}

	triggers = append(triggers, a.lookalikeTriggers(domain)...)
	triggers = append(triggers, a.structuralTriggers(domain)...)

	return triggers
}

// lookalikeTriggers covers fuzzy similarity, embedded brand names and
// unicode homographs against the brand registry
func (a *DomainAnalyzer) lookalikeTriggers(domain string) []domainTrigger {
	var triggers []domainTrigger

	if brand, ratio := a.registry.Closest(domain); brand != "" && brand != domain && ratio >= a.similarityThreshold {
		triggers = append(triggers, domainTrigger{
			reason:   fmt.Sprintf("closely resembles brand domain %s (similarity %.2f)", brand, ratio),
			weight:   weightLookalike,
			critical: true,
		})
	}

	label := leadingLabel(domain)
	for _, brand := range a.registry.Domains() {
		brandLabel := leadingLabel(brand)
		if len(brandLabel) < 4 || label == brandLabel {
			continue
		}
		if strings.Contains(label, brandLabel) {
			triggers = append(triggers, domainTrigger{
				reason:   fmt.Sprintf("embeds brand name %q without being %s", brandLabel, brand),
				weight:   weightEmbeddedName,
				critical: true,
			})
			break
		}
	}

	unicodeForm := UnicodeDomain(domain)
	if unicodeForm != domain || !isASCII(domain) {
		skeleton := RegistrableDomain(utils.Skeleton(unicodeForm))
		if a.registry.Contains(skeleton) {
			triggers = append(triggers, domainTrigger{
				reason:   fmt.Sprintf("homograph of brand domain %s", skeleton),
				weight:   weightHomograph,
				critical: true,
			})
		} else if skeleton != unicodeForm {
			triggers = append(triggers, domainTrigger{
				reason: "internationalized domain uses confusable characters",
				weight: weightConfusables,
			})
		}
	}

	return triggers
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// structuralTriggers covers hyphen and digit anomalies in the domain name
func (a *DomainAnalyzer) structuralTriggers(domain string) []domainTrigger {
	var triggers []domainTrigger

	if hyphens := strings.Count(domain, "-"); hyphens > a.maxHyphens {
		triggers = append(triggers, domainTrigger{
			reason: fmt.Sprintf("contains %d hyphens", hyphens),
			weight: weightStructural,
		})
	}

	label := leadingLabel(domain)
	if len(label) > 0 {
		digits := len(utils.Digits(label))
		if ratio := float64(digits) / float64(len(label)); ratio > a.maxDigitRatio {
			triggers = append(triggers, domainTrigger{
				reason: fmt.Sprintf("digit-heavy domain label (%.0f%% digits)", ratio*100),
				weight: weightStructural,
			})
		}
	}

	return triggers
}

// displayNameMismatch fires when the display name claims a known brand
// whose domain differs from the sender's
func (a *DomainAnalyzer) displayNameMismatch(msg *NormalizedMessage, domain string) (domainTrigger, bool) {
	brandDomain, ok := a.registry.MatchName(msg.SenderName)
	if !ok || brandDomain == domain {
		return domainTrigger{}, false
	}

	return domainTrigger{
		reason:   fmt.Sprintf("display name %q claims %s but sender domain is %s", msg.SenderName, brandDomain, domain),
		weight:   weightNameMismatch,
		critical: true,
	}, true
}

// combineTriggers turns fired checks into a legitimacy confidence. No
// triggers scores near certain; each extra trigger erodes it further and
// critical triggers cap it low.
func combineTriggers(triggers []domainTrigger) float64 {
	if len(triggers) == 0 {
		return legitimateConfidence
	}

	maxWeight := 0.0
	critical := false
	for _, t := range triggers {
		if t.weight > maxWeight {
			maxWeight = t.weight
		}
		if t.critical {
			critical = true
		}
	}

	confidence := 1.0 - maxWeight - 0.05*float64(len(triggers)-1)
	if critical && confidence > criticalConfidenceCap {
		confidence = criticalConfidenceCap
	}
	if confidence < minConfidence {
		confidence = minConfidence
	}

	return confidence
}

func triggerReasons(triggers []domainTrigger) []string {
	if len(triggers) == 0 {
		return nil
	}
	reasons := make([]string, len(triggers))
	for i, t := range triggers {
		reasons[i] = t.reason
	}
	return reasons
}

// leadingLabel returns the first dot-separated label of a domain
func leadingLabel(domain string) string {
	if idx := strings.IndexByte(domain, '.'); idx > 0 {
		return domain[:idx]
	}
	return domain
}

// topLevelLabel returns the last dot-separated label of a domain
func topLevelLabel(domain string) string {
	if idx := strings.LastIndexByte(domain, '.'); idx >= 0 && idx < len(domain)-1 {
		return domain[idx+1:]
	}
	return ""
}
