package eval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/internal/search"
)

// DefaultK is the cutoff used when neither the harness nor a case sets one.
const DefaultK = 10

// Searcher runs one query. *search.Orchestrator satisfies it.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

// CaseResult holds the scores of one query.
type CaseResult struct {
	ID        string   `json:"id"`
	Query     string   `json:"query"`
	K         int      `json:"k"`
	Retrieved []string `json:"retrieved"`

	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	NDCG           float64 `json:"ndcg"`
	ReciprocalRank float64 `json:"reciprocal_rank"`

	ExpectedCategory  string `json:"expected_category,omitempty"`
	PredictedCategory string `json:"predicted_category,omitempty"`
	Degraded          bool   `json:"degraded,omitempty"`

	Err string `json:"error,omitempty"`
}

// Failed reports whether the query errored.
func (r CaseResult) Failed() bool { return r.Err != "" }

// Report aggregates a suite run. Means cover successful queries only.
type Report struct {
	Cases []CaseResult `json:"cases"`

	MeanPrecision float64 `json:"mean_precision"`
	MeanRecall    float64 `json:"mean_recall"`
	MeanNDCG      float64 `json:"mean_ndcg"`
	MRR           float64 `json:"mrr"`

	// Classified counts successful queries with an expected category.
	Classified int `json:"classified"`
	// ClassifiedCorrect counts those whose prediction matched.
	ClassifiedCorrect int `json:"classified_correct"`

	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Took      time.Duration `json:"took"`
}

// ClassificationAccuracy is ClassifiedCorrect/Classified; ok is false when
// no case carried an expected category.
func (r *Report) ClassificationAccuracy() (acc float64, ok bool) {
	if r.Classified == 0 {
		return 0, false
	}
	return float64(r.ClassifiedCorrect) / float64(r.Classified), true
}

// Harness runs suites through a Searcher with bounded concurrency.
type Harness struct {
	searcher Searcher
	workers  int
	k        int
	classify bool
	logger   *slog.Logger
}

// HarnessOption configures a Harness.
type HarnessOption func(*Harness)

// WithWorkers sets the pool size. Values below 1 are ignored.
func WithWorkers(n int) HarnessOption {
	return func(h *Harness) {
		if n > 0 {
			h.workers = n
		}
	}
}

// WithK sets the default cutoff. Values below 1 are ignored.
func WithK(k int) HarnessOption {
	return func(h *Harness) {
		if k > 0 {
			h.k = k
		}
	}
}

// WithClassification toggles query classification on every request.
func WithClassification(enabled bool) HarnessOption {
	return func(h *Harness) {
		h.classify = enabled
	}
}

// WithHarnessLogger sets the logger.
func WithHarnessLogger(logger *slog.Logger) HarnessOption {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHarness creates a harness. Defaults: 4 workers, k = DefaultK,
// classification on.
func NewHarness(s Searcher, opts ...HarnessOption) *Harness {
	h := &Harness{
		searcher: s,
		workers:  4,
		k:        DefaultK,
		classify: true,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes every case and aggregates the scores. Per-query failures are
// recorded in the report; only pool setup or caller cancellation fail Run.
func (h *Harness) Run(ctx context.Context, suite *Suite) (*Report, error) {
	if err := suite.Validate(); err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(h.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	start := time.Now()
	results := make([]CaseResult, len(suite.Queries))
	var wg sync.WaitGroup

	for i, c := range suite.Queries {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i] = h.runCase(ctx, c)
		})
		if submitErr != nil {
			wg.Done()
			results[i] = h.newResult(c)
			results[i].Err = submitErr.Error()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := aggregate(results)
	report.Took = time.Since(start)

	h.logger.Info("eval_completed",
		slog.Int("queries", len(results)),
		slog.Int("failed", report.Failed),
		slog.Float64("mrr", report.MRR),
		slog.Float64("mean_ndcg", report.MeanNDCG),
		slog.Duration("took", report.Took))

	return report, nil
}

func (h *Harness) newResult(c Case) CaseResult {
	k := c.K
	if k == 0 {
		k = h.k
	}
	return CaseResult{
		ID:               c.ID,
		Query:            c.Query,
		K:                k,
		ExpectedCategory: c.Category,
	}
}

func (h *Harness) runCase(ctx context.Context, c Case) CaseResult {
	res := h.newResult(c)

	resp, err := h.searcher.Search(ctx, search.Request{
		Query:                  c.Query,
		UseQueryClassification: h.classify,
		TopK:                   res.K,
	})
	if err != nil {
		h.logger.Warn("eval_query_failed",
			append([]any{slog.String("id", c.ID)}, serrors.LogAttrs(err)...)...)
		res.Err = err.Error()
		return res
	}

	res.Retrieved = make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		res.Retrieved = append(res.Retrieved, r.Document.ID)
	}
	if resp.Classification != nil {
		res.PredictedCategory = resp.Classification.Category
	}
	res.Degraded = resp.Degraded

	res.Precision = PrecisionAtK(c.Relevant, res.Retrieved, res.K)
	res.Recall = RecallAtK(c.Relevant, res.Retrieved, res.K)
	res.NDCG = NDCGAtK(c.Relevant, res.Retrieved, res.K)
	res.ReciprocalRank = MRR(c.Relevant, res.Retrieved)
	return res
}

func aggregate(results []CaseResult) *Report {
	r := &Report{Cases: results}
	for _, c := range results {
		if c.Failed() {
			r.Failed++
			continue
		}
		r.Succeeded++
		r.MeanPrecision += c.Precision
		r.MeanRecall += c.Recall
		r.MeanNDCG += c.NDCG
		r.MRR += c.ReciprocalRank

		if c.ExpectedCategory != "" {
			r.Classified++
			if c.PredictedCategory == c.ExpectedCategory {
				r.ClassifiedCorrect++
			}
		}
	}
	if r.Succeeded > 0 {
		n := float64(r.Succeeded)
		r.MeanPrecision /= n
		r.MeanRecall /= n
		r.MeanNDCG /= n
		r.MRR /= n
	}
	return r
}
