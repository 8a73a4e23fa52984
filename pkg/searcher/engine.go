package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/topicsearch/internal/config"
	"github.com/Aman-CERP/topicsearch/internal/corpus"
	"github.com/Aman-CERP/topicsearch/internal/embed"
	"github.com/Aman-CERP/topicsearch/internal/index"
	"github.com/Aman-CERP/topicsearch/internal/search"
	"github.com/Aman-CERP/topicsearch/internal/telemetry"
)

// Request, Response and their parts are the orchestrator's types.
type (
	Request        = search.Request
	Response       = search.Response
	Result         = search.SearchResult
	Classification = search.QueryClassification
)

// Engine owns the opened indexes and the orchestrator built over them.
type Engine struct {
	config       *config.Config
	embedder     embed.Embedder
	indexes      *index.Indexes
	orchestrator *search.Orchestrator
	classifier   search.QueryClassifier
	logger       *slog.Logger
}

type options struct {
	embedder embed.Embedder
	recorder telemetry.Recorder
	logger   *slog.Logger
}

// Option configures Open.
type Option func(*options)

// WithEmbedder uses e instead of building one from the configuration.
// The engine takes ownership and closes it.
func WithEmbedder(e embed.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithRecorder records query metrics.
func WithRecorder(r telemetry.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open builds the embedder and classifier named by cfg and loads the
// indexes in cfg.Index.DataDir.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	o := options{logger: slog.Default(), recorder: telemetry.NopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}

	embedder := o.embedder
	if embedder == nil {
		e, err := embed.NewFromConfig(ctx, cfg.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		embedder = e
	}
	embedder = embed.WithCache(embedder, cfg.Embeddings.CacheSize)

	ix, err := index.Open(ctx, cfg, embedder, o.logger)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	categories := ix.Corpus.Categories()
	centroids := search.ComputeCentroids(ix.Corpus.Documents(), categories)
	classifier, err := search.NewClassifierFromConfig(cfg.Classifier, embedder, categories, centroids, o.logger)
	if err != nil {
		_ = ix.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	searchOpts := []search.Option{
		search.WithLogger(o.logger),
		search.WithRecorder(o.recorder),
	}
	if classifier != nil {
		searchOpts = append(searchOpts, search.WithClassifier(classifier))
	}
	orch, err := search.NewOrchestrator(
		search.NewBM25Searcher(ix.BM25),
		search.NewVectorSearcher(embedder, ix.Vectors),
		ix.Corpus,
		categories,
		search.ConfigFromSearch(cfg.Search),
		searchOpts...,
	)
	if err != nil {
		_ = ix.Close()
		_ = embedder.Close()
		return nil, err
	}

	o.logger.Debug("engine_opened",
		slog.String("embedder", embedder.ModelName()),
		slog.String("classifier", cfg.Classifier.Provider),
		slog.Int("documents", ix.Corpus.Len()),
		slog.Int("centroids", len(centroids)))

	return &Engine{
		config:       cfg,
		embedder:     embedder,
		indexes:      ix,
		orchestrator: orch,
		classifier:   classifier,
		logger:       o.logger,
	}, nil
}

// Search runs one query.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	return e.orchestrator.Search(ctx, req)
}

// Categories returns the document count per category.
func (e *Engine) Categories() []corpus.CategoryCount {
	return e.indexes.Corpus.Stats()
}

// CategorySet returns the configured categories in declaration order.
func (e *Engine) CategorySet() corpus.CategorySet {
	return e.indexes.Corpus.Categories()
}

// HasClassifier reports whether queries can be classified.
func (e *Engine) HasClassifier() bool { return e.classifier != nil }

// Manifest describes the opened index.
func (e *Engine) Manifest() *index.Manifest { return e.indexes.Manifest }

// Check runs a full consistency check across the opened stores.
func (e *Engine) Check(ctx context.Context) (*index.CheckResult, error) {
	return index.NewConsistencyChecker(e.indexes.Corpus, e.indexes.BM25, e.indexes.Vectors).Check(ctx)
}

// Repair deletes orphan entries from the keyword index and the vector
// store. The returned result describes the stores before the repair.
func (e *Engine) Repair(ctx context.Context) (*index.CheckResult, error) {
	return e.indexes.Repair(ctx)
}

// Close releases the indexes and the embedder.
func (e *Engine) Close() error {
	return errors.Join(e.indexes.Close(), e.embedder.Close())
}
