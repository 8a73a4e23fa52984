// Package telemetry records search metrics with Prometheus collectors.
// Everything registers on a private registry so nothing leaks into the
// process-global default and tests can build as many recorders as they like.
package telemetry

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Query outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
	OutcomeInvalid  = "invalid"
)

// Classification decisions.
const (
	DecisionApplied         = "applied"
	DecisionBelowThreshold  = "below_threshold"
	DecisionUnknownCategory = "unknown_category"
	DecisionFailed          = "failed"
	DecisionSkipped         = "skipped"
)

// Recorder receives search events from the orchestrator.
type Recorder interface {
	// QueryCompleted records one finished query and its wall time.
	QueryCompleted(outcome string, d time.Duration)

	// SearcherCompleted records one searcher call.
	SearcherCompleted(source string, d time.Duration)

	// SourceDegraded records a searcher that failed or timed out.
	SourceDegraded(source string)

	// ConsistencyFaults records n ids that did not resolve to a document.
	ConsistencyFaults(n int)

	// Classification records the gating decision for a query.
	Classification(decision string)
}

// NopRecorder discards everything.
type NopRecorder struct{}

var _ Recorder = NopRecorder{}

func (NopRecorder) QueryCompleted(string, time.Duration) {}
func (NopRecorder) SearcherCompleted(string, time.Duration) {}
func (NopRecorder) SourceDegraded(string) {}
func (NopRecorder) ConsistencyFaults(int) {}
func (NopRecorder) Classification(string) {}

// PrometheusRecorder implements Recorder on its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	queries          *prometheus.CounterVec
	degraded         *prometheus.CounterVec
	consistency      prometheus.Counter
	classification   *prometheus.CounterVec
	searchDuration   prometheus.Histogram
	searcherDuration *prometheus.HistogramVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates and registers all collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "topicsearch",
				Name:      "queries_total",
				Help:      "Total number of search queries by outcome",
			},
			[]string{"outcome"},
		),
		degraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "topicsearch",
				Name:      "degraded_total",
				Help:      "Searcher failures that degraded a query",
			},
			[]string{"source"},
		),
		consistency: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "topicsearch",
				Name:      "consistency_faults_total",
				Help:      "Fused ids missing from the document store",
			},
		),
		classification: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "topicsearch",
				Name:      "classification_total",
				Help:      "Query classification gating decisions",
			},
			[]string{"decision"},
		),
		searchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "topicsearch",
				Name:      "search_duration_seconds",
				Help:      "End-to-end search duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		searcherDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "topicsearch",
				Name:      "searcher_duration_seconds",
				Help:      "Per-searcher call duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"source"},
		),
	}

	r.registry.MustRegister(
		r.queries,
		r.degraded,
		r.consistency,
		r.classification,
		r.searchDuration,
		r.searcherDuration,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

func (r *PrometheusRecorder) QueryCompleted(outcome string, d time.Duration) {
	r.queries.WithLabelValues(outcome).Inc()
	r.searchDuration.Observe(d.Seconds())
}

func (r *PrometheusRecorder) SearcherCompleted(source string, d time.Duration) {
	r.searcherDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (r *PrometheusRecorder) SourceDegraded(source string) {
	r.degraded.WithLabelValues(source).Inc()
}

func (r *PrometheusRecorder) ConsistencyFaults(n int) {
	if n > 0 {
		r.consistency.Add(float64(n))
	}
}

func (r *PrometheusRecorder) Classification(decision string) {
	r.classification.WithLabelValues(decision).Inc()
}

// WriteText writes every gathered family in the text exposition format.
func (r *PrometheusRecorder) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
