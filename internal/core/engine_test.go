package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/brands"
	"github.com/mikey/llm-billing-guard/internal/metrics"
)

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) ClassifyMessage(ctx context.Context, msg *NormalizedMessage) (*ClassificationResult, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ClassificationResult), args.Error(1)
}

type fakeAuditRepo struct {
	entries []*AuditLogEntry
	fail    bool
}

func (f *fakeAuditRepo) Append(_ context.Context, entry *AuditLogEntry) (string, error) {
	if f.fail {
		return "", errors.New("audit store down")
	}
	id := fmt.Sprintf("audit-%d", len(f.entries)+1)
	f.entries = append(f.entries, entry)
	return id, nil
}

func (f *fakeAuditRepo) ListByMessage(_ context.Context, messageID, userID string) ([]*AuditLogEntry, error) {
	var out []*AuditLogEntry
	for _, e := range f.entries {
		if e.MessageID == messageID && e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

type pipelineFixture struct {
	classifier *mockClassifier
	vendors    *mockVendorRepo
	audit      *fakeAuditRepo
	pipeline   *Pipeline
}

func newPipelineFixture() *pipelineFixture {
	logger := zap.NewNop()
	classifier := &mockClassifier{}
	vendors := &mockVendorRepo{}
	audit := &fakeAuditRepo{}

	analyzer := NewDomainAnalyzer(
		brands.NewRegistry(nil, logger),
		nil,
		false,
		time.Hour,
		0.80,
		2,
		0.34,
		[]string{"tk", "ml", "xyz", "top"},
		logger,
	)

	pipeline := NewPipeline(
		NewRuleFilter(nil, logger),
		classifier,
		analyzer,
		NewVendorMatcher(vendors, logger),
		NewAttributeExtractor(logger),
		NewComparator(0.85, 0.90, 6, 10),
		audit,
		metrics.New(prometheus.NewRegistry()),
		logger,
		2*time.Second,
		0.5,
	)

	return &pipelineFixture{
		classifier: classifier,
		vendors:    vendors,
		audit:      audit,
		pipeline:   pipeline,
	}
}

func billClassification(confidence float64) *ClassificationResult {
	return &ClassificationResult{
		IsBilling:  true,
		EmailType:  EmailTypeBill,
		Confidence: confidence,
		Reasoning:  "invoice requesting payment",
		ModelUsed:  "test-model",
		AnalyzedAt: time.Now(),
	}
}

func auditSteps(entries []*AuditLogEntry) []AuditStep {
	steps := make([]AuditStep, len(entries))
	for i, e := range entries {
		steps[i] = e.Step
	}
	return steps
}

func TestEvaluateSafeVendorOnFile(t *testing.T) {
	f := newPipelineFixture()

	msg := &NormalizedMessage{
		ID:            "msg-a",
		SenderAddress: "billing@google.com",
		SenderName:    "Google",
		SenderDomain:  "google.com",
		Subject:       "Invoice for March",
		BodyText: "Invoice #123\n" +
			"Amount due: $102.00\n" +
			"Remit to: 1600 Amphitheatre Parkway, Mountain View, CA 94043\n" +
			"Account number: 12345678\n" +
			"Phone: +1 650-253-0000\n" +
			"Contact billing@google.com\n",
		ReceivedAt: time.Now(),
	}
	f.classifier.On("ClassifyMessage", mock.Anything, msg).Return(billClassification(0.95), nil)
	f.vendors.On("FindByNameFragment", mock.Anything, "user-1", "google").Return([]*VendorRecord{{
		ID:             "v1",
		UserID:         "user-1",
		Name:           "Google",
		Domain:         "google.com",
		BillingAddress: "1600 Amphitheatre Parkway, Mountain View, CA 94043",
		BankDetails:    "12345678",
		Phone:          "650-253-0000",
		ContactEmails:  []string{"billing@google.com"},
	}}, nil)

	verdict, entries, err := f.pipeline.Evaluate(context.Background(), msg, "user-1")
	require.NoError(t, err)

	assert.Equal(t, LabelSafe, verdict.Label)
	assert.False(t, verdict.Escalate)
	assert.False(t, verdict.RequiresResearch)
	assert.Empty(t, verdict.HaltReason)
	assert.InDelta(t, 0.96, verdict.Confidence, 0.001)

	assert.Equal(t, []AuditStep{
		StepRuleFilter,
		StepClassification,
		StepDomainCheck,
		StepVendorMatch,
		StepAttributeCompare,
		StepFinalDecision,
	}, auditSteps(entries))

	for _, entry := range entries {
		assert.Equal(t, "msg-a", entry.MessageID)
		assert.Equal(t, "user-1", entry.UserID)
		assert.False(t, entry.CreatedAt.IsZero())
		assert.NotEmpty(t, entry.ID)
	}
	assert.True(t, entries[len(entries)-1].Decision)
}

func TestEvaluateLookalikeDomainFraudulent(t *testing.T) {
	f := newPipelineFixture()

	msg := &NormalizedMessage{
		ID:            "msg-b",
		SenderAddress: "billing@g00gle.com",
		SenderDomain:  "g00gle.com",
		Subject:       "Invoice overdue",
		BodyText:      "Please pay your invoice immediately.",
	}
	f.classifier.On("ClassifyMessage", mock.Anything, msg).Return(billClassification(0.9), nil)

	verdict, entries, err := f.pipeline.Evaluate(context.Background(), msg, "user-1")
	require.NoError(t, err)

	assert.Equal(t, LabelFraudulent, verdict.Label)
	assert.False(t, verdict.Escalate)
	assert.Contains(t, verdict.HaltReason, "resembles brand domain google.com")
	assert.InDelta(t, 0.9, verdict.Confidence, 0.001)

	assert.Equal(t, []AuditStep{
		StepRuleFilter,
		StepClassification,
		StepDomainCheck,
		StepFinalDecision,
	}, auditSteps(entries))

	// No attribute comparison happens against a forged domain.
	f.vendors.AssertNotCalled(t, "FindByNameFragment", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluateUnknownVendorUnsure(t *testing.T) {
	f := newPipelineFixture()

	msg := &NormalizedMessage{
		ID:            "msg-c",
		SenderAddress: "billing@brandnewvendor.io",
		SenderDomain:  "brandnewvendor.io",
		Subject:       "Invoice",
		BodyText:      "Your first invoice is attached. Payment due in 30 days.",
	}
	f.classifier.On("ClassifyMessage", mock.Anything, msg).Return(billClassification(0.9), nil)
	f.vendors.On("FindByNameFragment", mock.Anything, "user-1", "brandnewvendor").Return([]*VendorRecord{}, nil)

	verdict, entries, err := f.pipeline.Evaluate(context.Background(), msg, "user-1")
	require.NoError(t, err)

	assert.Equal(t, LabelUnsure, verdict.Label)
	assert.True(t, verdict.Escalate)
	assert.Equal(t, "no vendor history for sender", verdict.HaltReason)

	assert.Equal(t, []AuditStep{
		StepRuleFilter,
		StepClassification,
		StepDomainCheck,
		StepVendorMatch,
		StepFinalDecision,
	}, auditSteps(entries))
}

func TestEvaluateChangedBankAccountRequiresResearch(t *testing.T) {
	f := newPipelineFixture()

	msg := &NormalizedMessage{
		ID:            "msg-d",
		SenderAddress: "billing@acmesupplies.com",
		SenderDomain:  "acmesupplies.com",
		Subject:       "Invoice 2024-044",
		BodyText:      "Invoice attached.\nPlease note our new banking details.\nAccount number: 99999999\n",
	}
	f.classifier.On("ClassifyMessage", mock.Anything, msg).Return(billClassification(0.9), nil)
	f.vendors.On("FindByNameFragment", mock.Anything, "user-1", "acmesupplies").Return([]*VendorRecord{{
		ID:          "v1",
		UserID:      "user-1",
		Name:        "Acme Supplies",
		Domain:      "acmesupplies.com",
		BankDetails: "12345678",
	}}, nil)

	verdict, entries, err := f.pipeline.Evaluate(context.Background(), msg, "user-1")
	require.NoError(t, err)

	assert.Equal(t, LabelUnsure, verdict.Label)
	assert.True(t, verdict.Escalate)
	assert.True(t, verdict.RequiresResearch)

	require.Equal(t, []AuditStep{
		StepRuleFilter,
		StepClassification,
		StepDomainCheck,
		StepVendorMatch,
		StepAttributeCompare,
		StepFinalDecision,
	}, auditSteps(entries))

	compareEntry := entries[4]
	assert.False(t, compareEntry.Decision)
	changes, ok := compareEntry.Details["changes"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, changes, 1)
	assert.Equal(t, "bank_details", changes[0]["field"])
	assert.Equal(t, "critical", changes[0]["severity"])
}

func TestEvaluateNoKeywordsHaltsAfterOneEntry(t *testing.T) {
	f := newPipelineFixture()

	msg := &NormalizedMessage{
		ID:            "msg-1",
		SenderAddress: "friend@example.com",
		SenderDomain:  "example.com",
		Subject:       "Lunch on Friday?",
		BodyText:      "Shall we try the new place at noon?",
	}

	verdict, entries, err := f.pipeline.Evaluate(context.Background(), msg, "user-1")
	require.NoError(t, err)

	assert.Equal(t, LabelNotBilling, verdict.Label)
	assert.False(t, verdict.Escalate)
	assert.Equal(t, "no billing indicators found", verdict.HaltReason)
	assert.Equal(t, []AuditStep{StepRuleFilter}, auditSteps(entries))

	f.classifier.AssertNotCalled(t, "ClassifyMessage", mock.Anything, mock.Anything)
}

func TestEvaluateClassifierRejectsBilling(t *testing.T) {
	f := newPipelineFixture()

	msg := &NormalizedMessage{
		ID:           "msg-1",
		SenderDomain: "example.com",
		Subject:      "Weekly newsletter: billing industry trends",
		BodyText:     "This week in payments news...",
	}
	f.classifier.On("ClassifyMessage", mock.Anything, msg).Return(&ClassificationResult{
		IsBilling:  false,
		EmailType:  EmailTypeOther,
		Confidence: 0.88,
		Reasoning:  "newsletter, not a billing request",
		ModelUsed:  "test-model",
	}, nil)

	verdict, entries, err := f.pipeline.Evaluate(context.Background(), msg, "user-1")
	require.NoError(t, err)

	assert.Equal(t, LabelNotBilling, verdict.Label)
	assert.Equal(t, "not billing (AI)", verdict.HaltReason)
	assert.Equal(t, []AuditStep{StepRuleFilter, StepClassification}, auditSteps(entries))
}

func TestEvaluateReceiptShortCircuitsAsSafe(t *testing.T) {
	f := newPipelineFixture()

	msg := &NormalizedMessage{
		ID:           "msg-1",
		SenderDomain: "shop.example",
		Subject:      "Your receipt from Shop",
		BodyText:     "Thanks for your payment of $12.99.",
	}
	f.classifier.On("ClassifyMessage", mock.Anything, msg).Return(&ClassificationResult{
		IsBilling:  true,
		EmailType:  EmailTypeReceipt,
		Confidence: 0.92,
		Reasoning:  "payment confirmation",
		ModelUsed:  "test-model",
	}, nil)

	verdict, entries, err := f.pipeline.Evaluate(context.Background(), msg, "user-1")
	require.NoError(t, err)

	assert.Equal(t, LabelSafe, verdict.Label)
	assert.False(t, verdict.Escalate)
	assert.Equal(t, "receipt treated as benign confirmation", verdict.HaltReason)

	steps := auditSteps(entries)
	assert.Equal(t, []AuditStep{StepRuleFilter, StepClassification}, steps)
	for _, step := range steps {
		assert.NotEqual(t, StepDomainCheck, step)
	}
}

func TestEvaluateClassifierFailureFallsBack(t *testing.T) {
	f := newPipelineFixture()

	msg := &NormalizedMessage{
		ID:            "msg-1",
		SenderAddress: "billing@brandnewvendor.io",
		SenderDomain:  "brandnewvendor.io",
		Subject:       "Invoice",
		BodyText:      "Invoice attached, payment due soon.",
	}
	f.classifier.On("ClassifyMessage", mock.Anything, msg).Return(nil, errors.New("service unreachable"))
	f.vendors.On("FindByNameFragment", mock.Anything, "user-1", "brandnewvendor").Return([]*VendorRecord{}, nil)

	verdict, entries, err := f.pipeline.Evaluate(context.Background(), msg, "user-1")
	require.NoError(t, err)

	// The run continues on the fallback classification instead of failing.
	assert.Equal(t, LabelUnsure, verdict.Label)

	classificationEntry := entries[1]
	assert.Equal(t, StepClassification, classificationEntry.Step)
	assert.Equal(t, "fallback", classificationEntry.Details["model_used"])
	assert.InDelta(t, 0.5, classificationEntry.Confidence, 0.001)
}

func TestEvaluateAuditStoreFailureDoesNotAbort(t *testing.T) {
	f := newPipelineFixture()
	f.audit.fail = true

	msg := &NormalizedMessage{
		ID:            "msg-1",
		SenderAddress: "billing@brandnewvendor.io",
		SenderDomain:  "brandnewvendor.io",
		Subject:       "Invoice",
		BodyText:      "Invoice attached.",
	}
	f.classifier.On("ClassifyMessage", mock.Anything, msg).Return(billClassification(0.9), nil)
	f.vendors.On("FindByNameFragment", mock.Anything, "user-1", "brandnewvendor").Return([]*VendorRecord{}, nil)

	verdict, entries, err := f.pipeline.Evaluate(context.Background(), msg, "user-1")
	require.NoError(t, err)

	assert.Equal(t, LabelUnsure, verdict.Label)
	// The trail is still handed back even though nothing was persisted.
	assert.Len(t, entries, 5)
	for _, entry := range entries {
		assert.Empty(t, entry.ID)
	}
}

func TestEvaluateContractViolations(t *testing.T) {
	f := newPipelineFixture()

	_, _, err := f.pipeline.Evaluate(context.Background(), nil, "user-1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = f.pipeline.Evaluate(context.Background(), &NormalizedMessage{}, "user-1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = f.pipeline.Evaluate(context.Background(), &NormalizedMessage{ID: "msg-1"}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEvaluateCancelledContext(t *testing.T) {
	f := newPipelineFixture()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg := &NormalizedMessage{ID: "msg-1", SenderDomain: "example.com", Subject: "Invoice"}
	verdict, entries, err := f.pipeline.Evaluate(ctx, msg, "user-1")

	assert.Nil(t, verdict)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, entries)
}
