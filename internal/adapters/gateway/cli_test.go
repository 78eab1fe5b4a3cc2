package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/adapters/auditstore"
	"github.com/mikey/llm-billing-guard/internal/adapters/vendorstore"
	"github.com/mikey/llm-billing-guard/internal/brands"
	"github.com/mikey/llm-billing-guard/internal/core"
	"github.com/mikey/llm-billing-guard/internal/metrics"
	"github.com/mikey/llm-billing-guard/internal/utils"
)

type stubClassifier struct {
	result *core.ClassificationResult
	err    error
	calls  int
}

func (s *stubClassifier) ClassifyMessage(ctx context.Context, msg *core.NormalizedMessage) (*core.ClassificationResult, error) {
	s.calls++
	return s.result, s.err
}

func newCLIGatewayForTest(classifier core.Classifier, jsonOutput bool, out *bytes.Buffer) *CLIGateway {
	nop := zap.NewNop()
	analyzer := core.NewDomainAnalyzer(
		brands.NewRegistry(nil, nop), nil, false, time.Hour,
		0.80, 2, 0.34, []string{"tk"}, nop)
	pipeline := core.NewPipeline(
		core.NewRuleFilter(nil, nop),
		classifier,
		analyzer,
		core.NewVendorMatcher(vendorstore.NewMemoryStore(nop), nop),
		core.NewAttributeExtractor(nop),
		core.NewComparator(0.85, 0.90, 6, 10),
		auditstore.NewMemoryStore(nop),
		metrics.New(prometheus.NewRegistry()),
		nop,
		time.Second,
		0.5,
	)
	return &CLIGateway{
		pipeline:   pipeline,
		normalizer: core.NewNormalizer(utils.NewTextProcessor(nop), nop),
		logger:     nop,
		userID:     "user-1",
		jsonOutput: jsonOutput,
		out:        out,
	}
}

func TestCLIGatewayJSONReportOnGateReject(t *testing.T) {
	classifier := &stubClassifier{}
	var buf bytes.Buffer
	gw := newCLIGatewayForTest(classifier, true, &buf)

	wire := "From: Alice <alice@example.com>\r\n" +
		"Subject: Lunch on Friday?\r\n" +
		"\r\n" +
		"See you at noon.\r\n"
	err := gw.Run(context.Background(), bytes.NewReader([]byte(wire)))
	require.NoError(t, err)

	var report cliReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, "not_billing", report.Label)
	assert.InDelta(t, 0.9, report.Confidence, 0.001)
	assert.False(t, report.Escalate)
	assert.Equal(t, "no billing indicators found", report.HaltReason)
	require.Len(t, report.AuditTrail, 1)
	assert.Equal(t, "rule_filter", report.AuditTrail[0].Step)
	assert.False(t, report.AuditTrail[0].Decision)
	assert.Equal(t, 0, classifier.calls)
}

func TestCLIGatewayHumanReportOnReceipt(t *testing.T) {
	classifier := &stubClassifier{
		result: &core.ClassificationResult{
			IsBilling:  true,
			EmailType:  core.EmailTypeReceipt,
			Confidence: 0.93,
			Reasoning:  "payment confirmation",
			ModelUsed:  "scripted",
		},
	}
	var buf bytes.Buffer
	gw := newCLIGatewayForTest(classifier, false, &buf)

	raw := &core.RawMessage{
		From:    "Acme Billing <billing@acme.com>",
		Subject: "Payment receipt for order 1184",
		Body:    "Thanks for your payment. This receipt confirms the charge of $12.00.\n",
	}
	verdict, entries, err := gw.ProcessMessage(context.Background(), raw, "user-1")
	require.NoError(t, err)
	require.NotNil(t, verdict)

	assert.Equal(t, core.LabelSafe, verdict.Label)
	assert.Len(t, entries, 2)
	assert.Equal(t, 1, classifier.calls)

	output := buf.String()
	assert.Contains(t, output, "From: Acme Billing <billing@acme.com>")
	assert.Contains(t, output, "Sender domain: acme.com")
	assert.Contains(t, output, "rule_filter")
	assert.Contains(t, output, "classification")
	assert.NotContains(t, output, "domain_check")
	assert.Contains(t, output, "Label: safe")
	assert.Contains(t, output, "Confidence: 0.9300")
	assert.Contains(t, output, "Halt reason: receipt treated as benign confirmation")
}
