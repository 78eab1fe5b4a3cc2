package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/metrics"
)

// ErrInvalidInput marks a caller contract violation. It is the only
// error class Evaluate raises on its own; collaborator failures are
// absorbed by stage fallbacks.
var ErrInvalidInput = errors.New("invalid pipeline input")

// pipelineState tracks progress through the staged decision sequence
type pipelineState int

const (
	statePending pipelineState = iota
	stateRuleFiltered
	stateClassified
	stateDomainChecked
	stateVendorMatched
	stateAttributesCompared
	stateFinal
)

// Severity weights used for stage and verdict confidences
const (
	confidenceCritical = 0.90
	confidenceHigh     = 0.80
	confidenceMedium   = 0.60

	keywordRejectConfidence = 0.90
	noVendorConfidence      = 0.50
)

// pipelineRun is the mutable state of one Evaluate invocation
type pipelineRun struct {
	msg     *NormalizedMessage
	userID  string
	state   pipelineState
	entries []*AuditLogEntry
}

// advance moves the run to the next state. Jumping straight to FINAL is
// allowed from anywhere since any stage may halt the run; every other
// transition must be sequential.
func (r *pipelineRun) advance(to pipelineState) error {
	if to != stateFinal && to != r.state+1 {
		return fmt.Errorf("%w: stage %d entered from state %d", ErrInvalidInput, to, r.state)
	}
	r.state = to
	return nil
}

// Pipeline sequences the fraud-detection stages for one message and
// appends one audit entry per stage that ran. It always terminates with
// a Verdict; collaborator failures degrade to documented fallbacks.
type Pipeline struct {
	prefilter          *RuleFilter
	classifier         Classifier
	analyzer           *DomainAnalyzer
	matcher            *VendorMatcher
	extractor          *AttributeExtractor
	comparator         *Comparator
	audit              AuditRepository
	metrics            *metrics.Metrics
	logger             *zap.Logger
	classifierTimeout  time.Duration
	fallbackConfidence float64
}

// NewPipeline creates the decision pipeline from its stages
func NewPipeline(
	prefilter *RuleFilter,
	classifier Classifier,
	analyzer *DomainAnalyzer,
	matcher *VendorMatcher,
	extractor *AttributeExtractor,
	comparator *Comparator,
	audit AuditRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
	classifierTimeout time.Duration,
	fallbackConfidence float64,
) *Pipeline {
	return &Pipeline{
		prefilter:          prefilter,
		classifier:         classifier,
		analyzer:           analyzer,
		matcher:            matcher,
		extractor:          extractor,
		comparator:         comparator,
		audit:              audit,
		metrics:            m,
		logger:             logger,
		classifierTimeout:  classifierTimeout,
		fallbackConfidence: fallbackConfidence,
	}
}

// Evaluate runs the full staged decision sequence for one message and
// returns the verdict together with the audit entries recorded along the
// way. An error is returned only for caller contract violations or
// context cancellation; entries written before a cancellation remain
// valid history.
func (p *Pipeline) Evaluate(ctx context.Context, msg *NormalizedMessage, userID string) (*Verdict, []*AuditLogEntry, error) {
	if msg == nil {
		return nil, nil, fmt.Errorf("%w: message is nil", ErrInvalidInput)
	}
	if msg.ID == "" || userID == "" {
		return nil, nil, fmt.Errorf("%w: message id and user id are required", ErrInvalidInput)
	}

	start := time.Now()
	p.metrics.EvaluationsTotal.Inc()

	run := &pipelineRun{msg: msg, userID: userID, state: statePending}
	verdict, err := p.run(ctx, run)
	if err != nil {
		return nil, run.entries, err
	}

	p.metrics.VerdictsTotal.WithLabelValues(string(verdict.Label)).Inc()
	p.metrics.EvaluateDuration.Observe(time.Since(start).Seconds())

	p.logger.Info("Pipeline finished",
		zap.String("message_id", msg.ID),
		zap.String("user_id", userID),
		zap.String("label", string(verdict.Label)),
		zap.Float64("confidence", verdict.Confidence),
		zap.Bool("escalate", verdict.Escalate),
		zap.Duration("elapsed", time.Since(start)))

	return verdict, run.entries, nil
}

func (p *Pipeline) run(ctx context.Context, run *pipelineRun) (*Verdict, error) {
	// Stage: rule-based pre-filter. The cheapest gate runs before any
	// paid classification call.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := run.advance(stateRuleFiltered); err != nil {
		return nil, err
	}
	isBilling, matched := p.prefilter.IsBilling(run.msg)
	p.record(ctx, run, StepRuleFilter, isBilling, 1.0,
		ruleFilterReasoning(isBilling, matched),
		map[string]any{"matched_keywords": matched})
	if !isBilling {
		return &Verdict{
			Label:      LabelNotBilling,
			Confidence: keywordRejectConfidence,
			HaltReason: "no billing indicators found",
		}, nil
	}

	// Stage: AI type classification.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := run.advance(stateClassified); err != nil {
		return nil, err
	}
	classification := p.classify(ctx, run.msg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.record(ctx, run, StepClassification, classification.IsBilling, classification.Confidence,
		classification.Reasoning,
		map[string]any{
			"email_type": string(classification.EmailType),
			"model_used": classification.ModelUsed,
		})
	if !classification.IsBilling {
		return &Verdict{
			Label:      LabelNotBilling,
			Confidence: classification.Confidence,
			HaltReason: "not billing (AI)",
		}, nil
	}
	// Receipts are confirmations of payments already made and get no
	// domain or vendor scrutiny.
	if classification.EmailType == EmailTypeReceipt {
		return &Verdict{
			Label:      LabelSafe,
			Confidence: classification.Confidence,
			HaltReason: "receipt treated as benign confirmation",
		}, nil
	}
	if classification.EmailType != EmailTypeBill {
		return &Verdict{
			Label:      LabelNotBilling,
			Confidence: classification.Confidence,
			HaltReason: "billing-related but not a bill or receipt",
		}, nil
	}

	// Stage: domain legitimacy. A forged domain leaves nothing useful to
	// compare, so the run halts as fraudulent.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := run.advance(stateDomainChecked); err != nil {
		return nil, err
	}
	analysis := p.analyzer.Analyze(ctx, run.msg)
	p.record(ctx, run, StepDomainCheck, analysis.IsLegitimate, analysis.Confidence,
		domainReasoning(analysis),
		map[string]any{
			"domain":  analysis.Domain,
			"reasons": analysis.Reasons,
		})
	if !analysis.IsLegitimate {
		return p.finalize(ctx, run, &Verdict{
			Label:      LabelFraudulent,
			Confidence: 1.0 - analysis.Confidence,
			HaltReason: "sender domain illegitimate: " + strings.Join(analysis.Reasons, "; "),
		})
	}

	// Stage: vendor match. No history routes to unsure, never to
	// fraudulent.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := run.advance(stateVendorMatched); err != nil {
		return nil, err
	}
	match := p.matcher.Match(ctx, run.msg, run.userID)
	p.record(ctx, run, StepVendorMatch, match != nil, vendorConfidence(match),
		vendorReasoning(run.msg, match),
		vendorDetails(match))
	if match == nil {
		return p.finalize(ctx, run, &Verdict{
			Label:      LabelUnsure,
			Confidence: noVendorConfidence,
			Escalate:   true,
			HaltReason: "no vendor history for sender",
		})
	}

	// Stage: attribute comparison.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := run.advance(stateAttributesCompared); err != nil {
		return nil, err
	}
	extracted := p.extractor.Extract(run.msg)
	changes := p.comparator.Compare(match, extracted)
	p.record(ctx, run, StepAttributeCompare, len(changes) == 0, changesConfidence(changes),
		changesReasoning(changes),
		map[string]any{"changes": changesDetails(changes)})

	if len(changes) == 0 {
		return p.finalize(ctx, run, &Verdict{
			Label:      LabelSafe,
			Confidence: (classification.Confidence + analysis.Confidence) / 2,
		})
	}

	verdict := &Verdict{
		Label:            LabelUnsure,
		Confidence:       changesConfidence(changes),
		Escalate:         true,
		HaltReason:       fmt.Sprintf("%d attribute change(s) detected", len(changes)),
		RequiresResearch: hasCritical(changes),
	}
	return p.finalize(ctx, run, verdict)
}

// finalize enters the FINAL state and records the closing audit entry.
// Runs that halted before the domain check return without one; their
// trail ends at the gate that rejected them.
func (p *Pipeline) finalize(ctx context.Context, run *pipelineRun, verdict *Verdict) (*Verdict, error) {
	if err := run.advance(stateFinal); err != nil {
		return nil, err
	}

	reasoning := verdict.HaltReason
	if reasoning == "" {
		reasoning = "all checks passed"
	}

	p.record(ctx, run, StepFinalDecision, verdict.Label == LabelSafe, verdict.Confidence,
		reasoning,
		map[string]any{
			"label":             string(verdict.Label),
			"escalate":          verdict.Escalate,
			"requires_research": verdict.RequiresResearch,
		})

	return verdict, nil
}

// classify calls the classification port with the stage timeout and
// degrades to the documented keyword fallback on any failure. The system
// always produces some classification.
func (p *Pipeline) classify(ctx context.Context, msg *NormalizedMessage) *ClassificationResult {
	cctx, cancel := context.WithTimeout(ctx, p.classifierTimeout)
	defer cancel()

	result, err := p.classifier.ClassifyMessage(cctx, msg)
	if err == nil && result != nil && validEmailType(result.EmailType) {
		return result
	}

	p.metrics.ClassifierFallbacks.Inc()
	p.logger.Warn("Classification unavailable, falling back to keyword result",
		zap.String("message_id", msg.ID),
		zap.Error(err))

	return &ClassificationResult{
		IsBilling:  true,
		EmailType:  EmailTypeBill,
		Confidence: p.fallbackConfidence,
		Reasoning:  "classification service unavailable; keyword match treated as bill",
		ModelUsed:  "fallback",
		AnalyzedAt: time.Now(),
	}
}

// record appends one audit entry for a stage that ran. Store failures
// are logged but never abort the run; the entry still joins the returned
// trail.
func (p *Pipeline) record(ctx context.Context, run *pipelineRun, step AuditStep, decision bool, confidence float64, reasoning string, details map[string]any) {
	entry := &AuditLogEntry{
		MessageID:  run.msg.ID,
		UserID:     run.userID,
		Step:       step,
		Decision:   decision,
		Confidence: confidence,
		Reasoning:  reasoning,
		Details:    details,
		CreatedAt:  time.Now(),
	}

	id, err := p.audit.Append(ctx, entry)
	if err != nil {
		p.logger.Error("Failed to append audit entry",
			zap.String("message_id", run.msg.ID),
			zap.String("step", string(step)),
			zap.Error(err))
	} else {
		entry.ID = id
	}

	run.entries = append(run.entries, entry)
	p.metrics.StagesTotal.WithLabelValues(string(step)).Inc()
}

func validEmailType(t EmailType) bool {
	switch t {
	case EmailTypeBill, EmailTypeReceipt, EmailTypeOther:
		return true
	}
	return false
}

func ruleFilterReasoning(isBilling bool, matched []string) string {
	if !isBilling {
		return "no billing indicators found"
	}
	return fmt.Sprintf("matched %d billing indicator(s): %s", len(matched), strings.Join(matched, ", "))
}

func domainReasoning(analysis *DomainAnalysis) string {
	if analysis.IsLegitimate {
		return fmt.Sprintf("domain %s passed all legitimacy checks", analysis.Domain)
	}
	return strings.Join(analysis.Reasons, "; ")
}

func vendorConfidence(match *VendorMatch) float64 {
	if match == nil {
		return 0.0
	}
	return match.NameSimilarity
}

func vendorReasoning(msg *NormalizedMessage, match *VendorMatch) string {
	if match == nil {
		return fmt.Sprintf("no vendor records match fragment %q", CompanyFragment(msg.SenderDomain))
	}
	return fmt.Sprintf("matched vendor %q", match.Name)
}

func vendorDetails(match *VendorMatch) map[string]any {
	if match == nil {
		return map[string]any{"matched": false}
	}
	return map[string]any{
		"matched":         true,
		"company_id":      match.CompanyID,
		"name":            match.Name,
		"domain":          match.Domain,
		"name_similarity": match.NameSimilarity,
	}
}

// changesConfidence scores the comparison outcome: a clean pass is
// certain, otherwise the worst severity drives how strongly the
// divergence counts
func changesConfidence(changes []AttributeChange) float64 {
	if len(changes) == 0 {
		return 1.0
	}

	confidence := 0.0
	for _, change := range changes {
		var w float64
		switch change.Severity {
		case SeverityCritical:
			w = confidenceCritical
		case SeverityHigh:
			w = confidenceHigh
		default:
			w = confidenceMedium
		}
		if w > confidence {
			confidence = w
		}
	}

	return confidence
}

func changesReasoning(changes []AttributeChange) string {
	if len(changes) == 0 {
		return "extracted attributes match vendor record"
	}

	fields := make([]string, len(changes))
	for i, change := range changes {
		fields[i] = fmt.Sprintf("%s (%s)", change.Field, change.Severity)
	}
	return "attribute changes: " + strings.Join(fields, ", ")
}

func changesDetails(changes []AttributeChange) []map[string]any {
	details := make([]map[string]any, len(changes))
	for i, change := range changes {
		details[i] = map[string]any{
			"field":      string(change.Field),
			"stored":     change.Stored,
			"received":   change.Received,
			"similarity": change.SimilarityScore,
			"severity":   string(change.Severity),
		}
	}
	return details
}

func hasCritical(changes []AttributeChange) bool {
	for _, change := range changes {
		if change.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
