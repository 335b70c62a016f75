package selection

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// resolveDuration tracks the time taken by best-option resolution.
	resolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "best_options_resolve_duration_seconds",
		Help:    "Time taken to resolve best options over collected candidates",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	// candidateCount tracks how many candidate options reach the resolver.
	candidateCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "best_options_resolver_candidates_count",
		Help:    "Number of candidate options per resolution",
		Buckets: []float64{1, 2, 5, 10, 20, 50},
	})

	// basketSize tracks the distribution of requested basket sizes.
	basketSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "best_options_basket_items_count",
		Help:    "Number of SKU lines in resolve requests",
		Buckets: []float64{1, 2, 5, 10, 20, 50},
	})

	// shortlistSize tracks the merged shortlist size passed to quoting.
	shortlistSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "best_options_shortlist_size",
		Help:    "Number of pharmacies in the merged quoting shortlist",
		Buckets: []float64{1, 2, 3, 5, 8, 10},
	})

	// alternativesFound counts open alternatives surfaced per axis.
	alternativesFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "best_options_open_alternatives_total",
		Help: "Open alternatives surfaced for closing-soon leaders by axis",
	}, []string{"axis"})

	// overridesFound counts closed-pharmacy overrides surfaced per axis.
	overridesFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "best_options_closed_overrides_total",
		Help: "Closed-pharmacy overrides surfaced by axis",
	}, []string{"axis"})

	// quoteFailures counts per-pharmacy pricing failures that were skipped.
	quoteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "best_options_quote_failures_total",
		Help: "Per-pharmacy delivery quote failures by reason",
	}, []string{"reason"})

	// outcomes counts terminal pipeline outcomes.
	outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "best_options_resolutions_total",
		Help: "Resolve pipeline outcomes",
	}, []string{"outcome"}) // ok, validation_error, search_failed, no_fulfillable_pharmacy, no_viable_open_option
)

// MetricsRecorder provides methods to record selection pipeline metrics.
type MetricsRecorder struct{}

// NewMetricsRecorder creates a new metrics recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// RecordResolveDuration records the duration of one resolution.
func (m *MetricsRecorder) RecordResolveDuration(d time.Duration) {
	resolveDuration.Observe(d.Seconds())
}

// RecordCandidateCount records the number of candidates in one resolution.
func (m *MetricsRecorder) RecordCandidateCount(count int) {
	candidateCount.Observe(float64(count))
}

// RecordBasketSize records the size of a requested basket.
func (m *MetricsRecorder) RecordBasketSize(size int) {
	basketSize.Observe(float64(size))
}

// RecordShortlistSize records the merged shortlist size.
func (m *MetricsRecorder) RecordShortlistSize(size int) {
	shortlistSize.Observe(float64(size))
}

// RecordAlternative records an open alternative surfaced on an axis.
func (m *MetricsRecorder) RecordAlternative(axis string) {
	alternativesFound.WithLabelValues(axis).Inc()
}

// RecordOverride records a closed-pharmacy override surfaced on an axis.
func (m *MetricsRecorder) RecordOverride(axis string) {
	overridesFound.WithLabelValues(axis).Inc()
}

// RecordQuoteFailure records a skipped per-pharmacy quote failure.
func (m *MetricsRecorder) RecordQuoteFailure(reason string) {
	quoteFailures.WithLabelValues(reason).Inc()
}

// RecordOutcome records a terminal pipeline outcome.
func (m *MetricsRecorder) RecordOutcome(outcome string) {
	outcomes.WithLabelValues(outcome).Inc()
}
