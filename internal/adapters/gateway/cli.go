package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
)

// CLIGateway implements a command-line interface for one-shot fraud checks
type CLIGateway struct {
	pipeline   *core.Pipeline
	normalizer *core.Normalizer
	logger     *zap.Logger
	userID     string
	verbose    bool
	jsonOutput bool
	out        io.Writer
}

// NewCLIGateway creates a new CLI gateway
func NewCLIGateway(
	pipeline *core.Pipeline,
	normalizer *core.Normalizer,
	logger *zap.Logger,
	userID string,
	verbose bool,
	jsonOutput bool,
) (*CLIGateway, error) {
	return &CLIGateway{
		pipeline:   pipeline,
		normalizer: normalizer,
		logger:     logger,
		userID:     userID,
		verbose:    verbose,
		jsonOutput: jsonOutput,
		out:        os.Stdout,
	}, nil
}

// cliReport is the JSON document emitted in -json mode
type cliReport struct {
	Label            string         `json:"label"`
	Confidence       float64        `json:"confidence"`
	Escalate         bool           `json:"escalate"`
	RequiresResearch bool           `json:"requires_research"`
	HaltReason       string         `json:"halt_reason,omitempty"`
	AuditTrail       []cliAuditStep `json:"audit_trail"`
}

type cliAuditStep struct {
	Step       string         `json:"step"`
	Decision   bool           `json:"decision"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
	Details    map[string]any `json:"details,omitempty"`
}

// Run reads a single wire-format message and evaluates it
func (g *CLIGateway) Run(ctx context.Context, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}

	raw, _, err := rawFromWire(data)
	if err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}

	_, _, err = g.ProcessMessage(ctx, raw, g.userID)
	return err
}

// ProcessMessage evaluates a message and displays the results
func (g *CLIGateway) ProcessMessage(ctx context.Context, raw *core.RawMessage, userID string) (*core.Verdict, []*core.AuditLogEntry, error) {
	g.logger.Debug("Processing message", zap.String("sender", raw.From))

	msg, err := g.normalizer.Normalize(raw)
	if err != nil {
		return nil, nil, err
	}

	if !g.jsonOutput {
		from := msg.SenderAddress
		if msg.SenderName != "" {
			from = fmt.Sprintf("%s <%s>", msg.SenderName, msg.SenderAddress)
		}
		fmt.Fprintf(g.out, "\n=== Message Summary ===\n")
		fmt.Fprintf(g.out, "From: %s\n", from)
		fmt.Fprintf(g.out, "Sender domain: %s\n", msg.SenderDomain)
		fmt.Fprintf(g.out, "Subject: %s\n", msg.Subject)
		fmt.Fprintf(g.out, "User: %s\n", userID)
		fmt.Fprintf(g.out, "Body length: %d bytes\n", len(msg.BodyText))

		if g.verbose {
			preview := msg.BodyText
			if len(preview) > 500 {
				preview = preview[:500] + "..."
			}
			fmt.Fprintf(g.out, "\nBody preview:\n%s\n", preview)
		}

		fmt.Fprintf(g.out, "\n=== Analysis ===\n")
		fmt.Fprintf(g.out, "Running fraud-detection pipeline...\n")
	}

	startTime := time.Now()
	verdict, entries, err := g.pipeline.Evaluate(ctx, msg, userID)
	if err != nil {
		g.logger.Error("Failed to evaluate message", zap.Error(err))
		if !g.jsonOutput {
			fmt.Fprintf(g.out, "Error: %v\n", err)
		}
		return nil, entries, err
	}
	duration := time.Since(startTime)

	if g.jsonOutput {
		report := cliReport{
			Label:            string(verdict.Label),
			Confidence:       verdict.Confidence,
			Escalate:         verdict.Escalate,
			RequiresResearch: verdict.RequiresResearch,
			HaltReason:       verdict.HaltReason,
			AuditTrail:       make([]cliAuditStep, 0, len(entries)),
		}
		for _, entry := range entries {
			report.AuditTrail = append(report.AuditTrail, cliAuditStep{
				Step:       string(entry.Step),
				Decision:   entry.Decision,
				Confidence: entry.Confidence,
				Reasoning:  entry.Reasoning,
				Details:    entry.Details,
			})
		}
		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, entries, fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Fprintln(g.out, string(encoded))
		return verdict, entries, nil
	}

	for _, entry := range entries {
		fmt.Fprintf(g.out, "%-20s decision=%-5t confidence=%.2f %s\n",
			entry.Step, entry.Decision, entry.Confidence, entry.Reasoning)
	}

	fmt.Fprintf(g.out, "\n=== Verdict ===\n")
	fmt.Fprintf(g.out, "Label: %s\n", verdict.Label)
	fmt.Fprintf(g.out, "Confidence: %.4f\n", verdict.Confidence)
	fmt.Fprintf(g.out, "Escalate: %t\n", verdict.Escalate)
	fmt.Fprintf(g.out, "Requires research: %t\n", verdict.RequiresResearch)
	if verdict.HaltReason != "" {
		fmt.Fprintf(g.out, "Halt reason: %s\n", verdict.HaltReason)
	}
	fmt.Fprintf(g.out, "Processing time: %v\n", duration)

	return verdict, entries, nil
}

// Start is a no-op for the CLI gateway
func (g *CLIGateway) Start() error {
	return nil
}

// Stop is a no-op for the CLI gateway
func (g *CLIGateway) Stop() error {
	return nil
}
