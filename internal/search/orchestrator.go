package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/topicsearch/internal/corpus"
	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Orchestrator answers queries by running both searchers concurrently,
// fusing their rankings and resolving ids against the document store.
// It holds no per-query state and is safe for concurrent use.
type Orchestrator struct {
	lexical    LexicalSearcher
	semantic   SemanticSearcher
	classifier QueryClassifier
	docs       DocumentStore
	categories corpus.CategorySet
	fusion     *FusionEngine
	config     Config
	logger     *slog.Logger
	recorder   telemetry.Recorder
}

// NewOrchestrator validates cfg and wires the collaborators.
func NewOrchestrator(
	lexical LexicalSearcher,
	semantic SemanticSearcher,
	docs DocumentStore,
	categories corpus.CategorySet,
	cfg Config,
	opts ...Option,
) (*Orchestrator, error) {
	if lexical == nil {
		return nil, fmt.Errorf("%w: lexical searcher is required", ErrNilDependency)
	}
	if semantic == nil {
		return nil, fmt.Errorf("%w: semantic searcher is required", ErrNilDependency)
	}
	if docs == nil {
		return nil, fmt.Errorf("%w: document store is required", ErrNilDependency)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		lexical:    lexical,
		semantic:   semantic,
		docs:       docs,
		categories: categories,
		fusion:     NewFusionEngine(categories),
		config:     cfg,
		logger:     slog.Default(),
		recorder:   telemetry.NopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func validateConfig(cfg Config) error {
	switch {
	case math.IsNaN(cfg.Alpha) || cfg.Alpha < 0 || cfg.Alpha > 1:
		return serrors.ConfigError(fmt.Sprintf("alpha must be within [0,1], got %v", cfg.Alpha), nil)
	case cfg.RRFConstant < 0:
		return serrors.ConfigError(fmt.Sprintf("rrf constant must be >= 0, got %d", cfg.RRFConstant), nil)
	case cfg.CandidateCount <= 0:
		return serrors.ConfigError("candidate count must be positive", nil)
	case cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1:
		return serrors.ConfigError(fmt.Sprintf("confidence threshold must be within [0,1], got %v", cfg.ConfidenceThreshold), nil)
	case cfg.SearcherTimeout <= 0:
		return serrors.ConfigError("searcher timeout must be positive", nil)
	}
	return nil
}

// Config returns the orchestrator settings.
func (o *Orchestrator) Config() Config { return o.config }

// Categories returns the category set.
func (o *Orchestrator) Categories() corpus.CategorySet { return o.categories }

// Search runs one query. Only a failure of both searchers is an error;
// a single failure degrades the response instead.
func (o *Orchestrator) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		o.recorder.QueryCompleted(telemetry.OutcomeInvalid, time.Since(start))
		return nil, serrors.New(serrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	if req.TopK <= 0 {
		o.recorder.QueryCompleted(telemetry.OutcomeInvalid, time.Since(start))
		return nil, serrors.ValidationError(fmt.Sprintf("top_k must be positive, got %d", req.TopK), nil).
			WithDetail("top_k", fmt.Sprint(req.TopK))
	}
	alpha := o.config.Alpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}

	topK := req.TopK
	if o.config.MaxTopK > 0 && topK > o.config.MaxTopK {
		topK = o.config.MaxTopK
	}

	classification, filter := o.resolveFilter(ctx, query, req)

	lexHits, semHits, degraded, err := o.parallelSearch(ctx, query, filter, max(o.config.CandidateCount, topK))
	if err != nil {
		o.recorder.QueryCompleted(telemetry.OutcomeFailed, time.Since(start))
		return nil, err
	}

	ids := make([]string, 0, len(lexHits)+len(semHits))
	for _, h := range lexHits {
		ids = append(ids, h.DocID)
	}
	for _, h := range semHits {
		ids = append(ids, h.DocID)
	}

	fused, err := o.fusion.Fuse(lexHits, semHits, FuseOptions{
		Alpha:          alpha,
		RRFConstant:    o.config.RRFConstant,
		CategoryFilter: filter,
		Snapshot:       o.docs.Snapshot(ids),
	})
	if err != nil {
		o.recorder.QueryCompleted(telemetry.OutcomeInvalid, time.Since(start))
		return nil, err
	}

	results := o.resolve(fused, topK)

	resp := &Response{
		Query:           req.Query,
		Classification:  classification,
		CategoryFilter:  filter,
		Results:         results,
		TotalResults:    len(results),
		Degraded:        len(degraded) > 0,
		DegradedSources: degraded,
		Took:            time.Since(start),
	}

	outcome := telemetry.OutcomeOK
	if resp.Degraded {
		outcome = telemetry.OutcomeDegraded
	}
	o.recorder.QueryCompleted(outcome, resp.Took)

	o.logger.Debug("search_completed",
		slog.String("query", truncateQuery(query, 80)),
		slog.String("filter", filter),
		slog.Int("lexical_hits", len(lexHits)),
		slog.Int("semantic_hits", len(semHits)),
		slog.Int("results", len(results)),
		slog.Duration("took", resp.Took))

	return resp, nil
}

// resolveFilter applies the filter precedence: an explicit filter wins,
// otherwise a classified category is adopted when its confidence strictly
// exceeds the threshold and it belongs to the category set.
func (o *Orchestrator) resolveFilter(ctx context.Context, query string, req Request) (*QueryClassification, string) {
	if req.CategoryFilter != "" {
		if !o.categories.Contains(req.CategoryFilter) {
			o.logger.Warn("unknown_category_filter", slog.String("category", req.CategoryFilter))
		}
		return nil, req.CategoryFilter
	}
	if !req.UseQueryClassification || o.classifier == nil {
		o.recorder.Classification(telemetry.DecisionSkipped)
		return nil, ""
	}

	qc, err := o.classifier.Classify(ctx, query)
	if err != nil {
		o.recorder.Classification(telemetry.DecisionFailed)
		o.logger.Warn("classification_failed",
			slog.String("query", truncateQuery(query, 80)),
			slog.String("error", err.Error()))
		return nil, ""
	}

	decision := telemetry.DecisionApplied
	filter := qc.Category
	switch {
	case !o.categories.Contains(qc.Category):
		decision, filter = telemetry.DecisionUnknownCategory, ""
	case qc.Confidence <= o.config.ConfidenceThreshold:
		decision, filter = telemetry.DecisionBelowThreshold, ""
	}
	o.recorder.Classification(decision)

	o.logger.Debug("classification_gated",
		slog.String("category", qc.Category),
		slog.Float64("confidence", qc.Confidence),
		slog.Float64("threshold", o.config.ConfidenceThreshold),
		slog.String("decision", decision))

	return &qc, filter
}

// parallelSearch runs both searchers under their own timeout. A failed
// searcher contributes no hits and is reported in degraded.
func (o *Orchestrator) parallelSearch(ctx context.Context, query, filter string, candidates int) (
	lexHits, semHits []RankedHit,
	degraded []string,
	err error,
) {
	g, gctx := errgroup.WithContext(ctx)

	var lexErr, semErr error

	lexFilter := ""
	if o.config.LexicalPrefilter {
		lexFilter = filter
	}

	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, o.config.SearcherTimeout)
		defer cancel()

		start := time.Now()
		lexHits, lexErr = withDeadline(sctx, SourceLexical, func(ctx context.Context) ([]RankedHit, error) {
			return o.lexical.Search(ctx, query, lexFilter, candidates)
		})
		o.recorder.SearcherCompleted(SourceLexical, time.Since(start))
		return nil
	})

	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, o.config.SearcherTimeout)
		defer cancel()

		start := time.Now()
		semHits, semErr = withDeadline(sctx, SourceSemantic, func(ctx context.Context) ([]RankedHit, error) {
			return o.semantic.Search(ctx, query, candidates)
		})
		o.recorder.SearcherCompleted(SourceSemantic, time.Since(start))
		return nil
	})

	// Goroutines never return an error; failures are tracked per source.
	_ = g.Wait()

	if lexErr != nil && semErr != nil {
		o.logger.Error("search_failed",
			slog.String("lexical_error", lexErr.Error()),
			slog.String("semantic_error", semErr.Error()))
		o.recorder.SourceDegraded(SourceLexical)
		o.recorder.SourceDegraded(SourceSemantic)
		return nil, nil, nil, serrors.New(serrors.ErrCodeBackendUnavailable,
			"both searchers failed", errors.Join(lexErr, semErr)).
			WithSuggestion("Check that the index exists ('topicsearch index') and the embedding provider is reachable")
	}

	for _, f := range []struct {
		source string
		err    error
	}{{SourceLexical, lexErr}, {SourceSemantic, semErr}} {
		if f.err == nil {
			continue
		}
		degraded = append(degraded, f.source)
		o.recorder.SourceDegraded(f.source)
		o.logger.Warn("search_degraded",
			append([]any{slog.String("source", f.source)}, serrors.LogAttrs(f.err)...)...)
	}
	if lexErr != nil {
		lexHits = nil
	}
	if semErr != nil {
		semHits = nil
	}
	return lexHits, semHits, degraded, nil
}

// resolve maps fused ids to documents, dropping ids the store does not know,
// and assigns dense 1-based ranks.
func (o *Orchestrator) resolve(fused []FusedHit, topK int) []*SearchResult {
	results := make([]*SearchResult, 0, min(len(fused), topK))
	faults := 0
	for _, f := range fused {
		if len(results) == topK {
			break
		}
		doc, ok := o.docs.Get(f.DocID)
		if !ok {
			faults++
			o.logger.Warn("consistency_fault", serrors.LogAttrs(serrors.ConsistencyError(f.DocID))...)
			continue
		}
		results = append(results, &SearchResult{
			Document:     doc,
			Score:        f.Score,
			Rank:         len(results) + 1,
			LexicalRank:  f.LexicalRank,
			SemanticRank: f.SemanticRank,
		})
	}
	o.recorder.ConsistencyFaults(faults)
	return results
}

// withDeadline runs search and stops waiting once ctx is done. A searcher that
// ignores ctx keeps running in the background, but its late hits are
// discarded and the call counts as a failure of source.
func withDeadline(ctx context.Context, source string, search func(context.Context) ([]RankedHit, error)) ([]RankedHit, error) {
	type outcome struct {
		hits []RankedHit
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		hits, err := search(ctx)
		done <- outcome{hits: hits, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil && ctx.Err() != nil {
			return nil, serrors.BackendError(source, ctx.Err())
		}
		return out.hits, out.err
	case <-ctx.Done():
		return nil, serrors.BackendError(source, ctx.Err())
	}
}

// truncateQuery shortens query for logging without splitting a rune.
func truncateQuery(query string, maxLen int) string {
	short := corpus.Truncate(query, maxLen)
	if short == query {
		return query
	}
	return short + "..."
}
