package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
	"github.com/mikey/llm-billing-guard/internal/metrics"
)

const breakerName = "classifier"

// ClassifierBreaker wraps a Classifier with a circuit breaker so a
// failing classification service sheds load quickly instead of making
// every message wait out the stage timeout.
type ClassifierBreaker struct {
	inner  core.Classifier
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// New wraps inner with a circuit breaker that trips after maxFailures
// consecutive errors and probes again after timeout
func New(
	inner core.Classifier,
	maxFailures int,
	interval time.Duration,
	timeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ClassifierBreaker {
	settings := gobreaker.Settings{
		Name:     breakerName,
		Interval: interval,
		Timeout:  timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Classifier circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			m.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	}
	m.BreakerState.WithLabelValues(breakerName).Set(stateValue(gobreaker.StateClosed))

	return &ClassifierBreaker{
		inner:  inner,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

// ClassifyMessage delegates to the wrapped classifier through the
// breaker. While the breaker is open, calls fail immediately.
func (b *ClassifierBreaker) ClassifyMessage(ctx context.Context, msg *core.NormalizedMessage) (*core.ClassificationResult, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.ClassifyMessage(ctx, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to classify message: %w", err)
	}

	return result.(*core.ClassificationResult), nil
}

// Close closes the wrapped classifier when it supports closing
func (b *ClassifierBreaker) Close() error {
	if closer, ok := b.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
