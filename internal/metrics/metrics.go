package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "billing_guard"

// Metrics holds the pipeline's Prometheus instruments. Constructing them
// against an injected registerer keeps tests free of global registry
// collisions.
type Metrics struct {
	EvaluationsTotal    prometheus.Counter
	VerdictsTotal       *prometheus.CounterVec
	StagesTotal         *prometheus.CounterVec
	ClassifierFallbacks prometheus.Counter
	EvaluateDuration    prometheus.Histogram
	DomainCacheHits     prometheus.Counter
	DomainCacheMisses   prometheus.Counter
	BreakerState        *prometheus.GaugeVec
}

// New creates the metric set registered against reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EvaluationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Number of pipeline runs started.",
		}),
		VerdictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Number of final verdicts by label.",
		}, []string{"label"}),
		StagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stages_total",
			Help:      "Number of pipeline stages entered by step.",
		}, []string{"step"}),
		ClassifierFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_fallbacks_total",
			Help:      "Number of classifications answered by the keyword fallback.",
		}),
		EvaluateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluate_duration_seconds",
			Help:      "Wall time of full pipeline runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		DomainCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_cache_hits_total",
			Help:      "Number of domain analyses served from cache.",
		}),
		DomainCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_cache_misses_total",
			Help:      "Number of domain analyses computed fresh.",
		}),
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"name"}),
	}
}
