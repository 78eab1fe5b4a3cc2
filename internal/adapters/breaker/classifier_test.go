package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
	"github.com/mikey/llm-billing-guard/internal/metrics"
)

type scriptedClassifier struct {
	calls  int
	result *core.ClassificationResult
	err    error
}

func (s *scriptedClassifier) ClassifyMessage(context.Context, *core.NormalizedMessage) (*core.ClassificationResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newBreaker(inner core.Classifier, maxFailures int) *ClassifierBreaker {
	return New(inner, maxFailures, time.Minute, time.Minute, metrics.New(prometheus.NewRegistry()), zap.NewNop())
}

func TestClassifyMessagePassesThroughWhileClosed(t *testing.T) {
	inner := &scriptedClassifier{result: &core.ClassificationResult{
		IsBilling:  true,
		EmailType:  core.EmailTypeBill,
		Confidence: 0.9,
	}}
	b := newBreaker(inner, 3)

	result, err := b.ClassifyMessage(context.Background(), &core.NormalizedMessage{ID: "msg-1"})
	require.NoError(t, err)
	assert.Equal(t, core.EmailTypeBill, result.EmailType)
	assert.Equal(t, 1, inner.calls)
}

func TestClassifyMessageWrapsInnerErrors(t *testing.T) {
	innerErr := errors.New("model unavailable")
	inner := &scriptedClassifier{err: innerErr}
	b := newBreaker(inner, 3)

	_, err := b.ClassifyMessage(context.Background(), &core.NormalizedMessage{ID: "msg-1"})
	assert.ErrorIs(t, err, innerErr)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &scriptedClassifier{err: errors.New("model unavailable")}
	b := newBreaker(inner, 2)

	msg := &core.NormalizedMessage{ID: "msg-1"}
	for i := 0; i < 2; i++ {
		_, err := b.ClassifyMessage(context.Background(), msg)
		require.Error(t, err)
	}
	require.Equal(t, 2, inner.calls)

	// The breaker is now open: the wrapped classifier is not called.
	_, err := b.ClassifyMessage(context.Background(), msg)
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	inner := &scriptedClassifier{result: &core.ClassificationResult{EmailType: core.EmailTypeReceipt}}
	b := newBreaker(inner, 2)

	msg := &core.NormalizedMessage{ID: "msg-1"}
	for i := 0; i < 10; i++ {
		_, err := b.ClassifyMessage(context.Background(), msg)
		require.NoError(t, err)
	}
	assert.Equal(t, 10, inner.calls)
}
