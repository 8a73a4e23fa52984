package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/topicsearch/internal/config"
	"github.com/Aman-CERP/topicsearch/internal/corpus"
	"github.com/Aman-CERP/topicsearch/internal/embed"
	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/internal/store"
)

// bm25Batch bounds how many documents go into one keyword index call.
const bm25Batch = 1000

// Stage names a build step for progress reporting.
type Stage string

const (
	StageEmbedding Stage = "embedding"
	StageCorpus    Stage = "corpus"
	StageKeyword   Stage = "keyword"
	StageVector    Stage = "vector"
)

// ProgressEvent reports how far a stage has got.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
}

// ProgressFunc receives progress events. Calls are serialized.
type ProgressFunc func(ProgressEvent)

// BuildResult summarizes a finished build.
type BuildResult struct {
	Manifest *Manifest
	Stats    []corpus.CategoryCount
	// Precomputed counts documents whose own embedding was kept.
	Precomputed int

	EmbedDuration time.Duration
	IndexDuration time.Duration
	Duration      time.Duration
}

// BuilderDependencies holds what a Builder needs.
type BuilderDependencies struct {
	// Config supplies the data directory, workers, batch size and backend (required).
	Config *config.Config

	// Embedder produces document vectors (required).
	Embedder embed.Embedder

	Logger   *slog.Logger
	Progress ProgressFunc
}

// Builder writes the corpus database, keyword index and vector store for a
// corpus into the configured data directory.
type Builder struct {
	config   *config.Config
	embedder embed.Embedder
	logger   *slog.Logger

	progressMu sync.Mutex
	progress   ProgressFunc
}

// NewBuilder validates deps and returns a Builder.
func NewBuilder(deps BuilderDependencies) (*Builder, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		config:   deps.Config,
		embedder: deps.Embedder,
		logger:   logger,
		progress: deps.Progress,
	}, nil
}

// Build indexes docs. The new artifacts are written to a staging directory
// and only replace the live ones once every step succeeded. A second build
// against the same data directory fails fast while one is running.
func (b *Builder) Build(ctx context.Context, docs []corpus.Document, categories corpus.CategorySet) (*BuildResult, error) {
	start := time.Now()
	if len(docs) == 0 {
		return nil, serrors.ValidationError("corpus has no documents", nil)
	}

	dataDir := b.config.Index.DataDir
	lock := NewBuildLock(dataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeIndexFailed, "lock data directory", err)
	}
	if !acquired {
		return nil, serrors.New(serrors.ErrCodeIndexFailed,
			fmt.Sprintf("another build holds %s", lock.Path()), nil).
			WithSuggestion("Wait for the running 'topicsearch index' to finish")
	}
	defer func() { _ = lock.Unlock() }()

	staging := filepath.Join(dataDir, stagingDir)
	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	b.logger.Info("index_started",
		slog.Int("documents", len(docs)),
		slog.String("embedder", b.embedder.ModelName()),
		slog.String("data_dir", dataDir))

	// Work on a copy so the caller's documents are left untouched.
	docs = append([]corpus.Document(nil), docs...)

	embedStart := time.Now()
	vectors, precomputed, err := b.embedDocuments(ctx, docs)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}
	embedDuration := time.Since(embedStart)

	indexStart := time.Now()
	backend := b.config.Search.LexicalBackend
	if err := b.writeCorpus(ctx, staging, docs, categories); err != nil {
		return nil, err
	}
	if err := b.writeKeywordIndex(ctx, staging, backend, docs); err != nil {
		return nil, err
	}
	if err := b.writeVectors(ctx, staging, docs); err != nil {
		return nil, err
	}

	manifest := &Manifest{
		Version:        ManifestVersion,
		EmbedderModel:  b.embedder.ModelName(),
		Dimensions:     b.embedder.Dimensions(),
		LexicalBackend: backend,
		Documents:      len(docs),
		Categories:     categories.Names(),
		BuiltAt:        time.Now().UTC(),
	}
	if err := WriteManifest(staging, manifest); err != nil {
		return nil, err
	}

	if err := promote(staging, dataDir); err != nil {
		return nil, serrors.New(serrors.ErrCodeIndexFailed, "install new index", err)
	}
	committed = true
	removeStaleBM25(dataDir, backend)
	indexDuration := time.Since(indexStart)

	st, err := corpus.NewStore(docs, categories)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{
		Manifest:      manifest,
		Stats:         st.Stats(),
		Precomputed:   precomputed,
		EmbedDuration: embedDuration,
		IndexDuration: indexDuration,
		Duration:      time.Since(start),
	}

	docsPerSec := 0.0
	if embedDuration.Seconds() > 0 {
		docsPerSec = float64(len(docs)) / embedDuration.Seconds()
	}
	b.logger.Info("index_complete",
		slog.Int("documents", len(docs)),
		slog.Int("categories", categories.Len()),
		slog.String("embedder_model", manifest.EmbedderModel),
		slog.Int("embedder_dimensions", manifest.Dimensions),
		slog.String("lexical_backend", backend),
		slog.Int64("duration_embed_ms", embedDuration.Milliseconds()),
		slog.Int64("duration_index_ms", indexDuration.Milliseconds()),
		slog.Int64("duration_total_ms", result.Duration.Milliseconds()),
		slog.Float64("docs_per_sec", docsPerSec))

	return result, nil
}

// embedDocuments returns one vector per document, in document order.
// Precomputed embeddings of the embedder's dimension are kept; the rest is
// embedded from truncated text in batches, several batches at a time. The
// second result is the number of kept embeddings.
func (b *Builder) embedDocuments(ctx context.Context, docs []corpus.Document) ([][]float32, int, error) {
	batchSize := max(b.config.Embeddings.BatchSize, 1)
	workers := max(b.config.Index.Workers, 1)
	maxChars := b.config.Embeddings.MaxChars
	dims := b.embedder.Dimensions()

	vectors := make([][]float32, len(docs))
	var pending []int
	ignored := 0
	for i := range docs {
		switch len(docs[i].Embedding) {
		case dims:
			vectors[i] = append([]float32(nil), docs[i].Embedding...)
		case 0:
			pending = append(pending, i)
		default:
			ignored++
			pending = append(pending, i)
		}
	}
	precomputed := len(docs) - len(pending)
	if ignored > 0 {
		b.logger.Warn("precomputed_embeddings_ignored",
			slog.Int("count", ignored),
			slog.Int("expected_dimensions", dims))
	}

	texts := make([]string, len(pending))
	for j, i := range pending {
		texts[j] = corpus.Truncate(docs[i].Text(), maxChars)
	}

	var (
		doneMu sync.Mutex
		done   = precomputed
	)
	b.report(ProgressEvent{Stage: StageEmbedding, Current: done, Total: len(docs)})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			batch, err := b.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return serrors.New(serrors.ErrCodeEmbeddingFailed,
					fmt.Sprintf("embed documents %d-%d", start, end), err)
			}
			if len(batch) != end-start {
				return serrors.InternalError(
					fmt.Sprintf("embedder returned %d vectors for %d texts", len(batch), end-start), nil)
			}
			for j, v := range batch {
				i := pending[start+j]
				if len(v) != dims {
					return serrors.New(serrors.ErrCodeDimensionMismatch,
						fmt.Sprintf("document %s: %v", docs[i].ID, store.ErrDimensionMismatch{Expected: dims, Got: len(v)}), nil)
				}
				vectors[i] = v
			}

			doneMu.Lock()
			done += end - start
			current := done
			doneMu.Unlock()
			b.report(ProgressEvent{Stage: StageEmbedding, Current: current, Total: len(docs)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, 0, fmt.Errorf("indexing interrupted: %w", ctx.Err())
		}
		return nil, 0, err
	}
	return vectors, precomputed, nil
}

func (b *Builder) writeCorpus(ctx context.Context, dir string, docs []corpus.Document, categories corpus.CategorySet) error {
	b.report(ProgressEvent{Stage: StageCorpus, Total: len(docs)})
	repo, err := corpus.OpenSQLiteRepository(filepath.Join(dir, CorpusFile))
	if err != nil {
		return err
	}
	if err := repo.Replace(ctx, docs, categories); err != nil {
		_ = repo.Close()
		return fmt.Errorf("failed to store corpus: %w", err)
	}
	if err := repo.Close(); err != nil {
		return err
	}
	b.report(ProgressEvent{Stage: StageCorpus, Current: len(docs), Total: len(docs)})
	return nil
}

func (b *Builder) writeKeywordIndex(ctx context.Context, dir, backend string, docs []corpus.Document) error {
	idx, err := store.NewBM25IndexWithBackend(filepath.Join(dir, BM25Base), KeywordConfig(b.config), backend)
	if err != nil {
		return fmt.Errorf("failed to create keyword index: %w", err)
	}

	for start := 0; start < len(docs); start += bm25Batch {
		end := min(start+bm25Batch, len(docs))
		batch := make([]*store.Document, 0, end-start)
		for _, d := range docs[start:end] {
			batch = append(batch, &store.Document{
				ID:       d.ID,
				Title:    d.Title,
				Content:  d.Content,
				Category: d.Category,
			})
		}
		if err := idx.Index(ctx, batch); err != nil {
			_ = idx.Close()
			return fmt.Errorf("failed to index documents in keyword index: %w", err)
		}
		b.report(ProgressEvent{Stage: StageKeyword, Current: end, Total: len(docs)})
	}
	return idx.Close()
}

func (b *Builder) writeVectors(ctx context.Context, dir string, docs []corpus.Document) error {
	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(b.embedder.Dimensions()))
	if err != nil {
		return err
	}
	defer func() { _ = vs.Close() }()

	ids := make([]string, len(docs))
	vecs := make([][]float32, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
		vecs[i] = docs[i].Embedding
	}
	if err := vs.Add(ctx, ids, vecs); err != nil {
		return fmt.Errorf("failed to add to vector store: %w", err)
	}
	if err := vs.Save(filepath.Join(dir, VectorFile)); err != nil {
		return fmt.Errorf("failed to save vector store: %w", err)
	}
	b.report(ProgressEvent{Stage: StageVector, Current: len(docs), Total: len(docs)})
	return nil
}

// KeywordConfig derives the keyword index settings from cfg.
func KeywordConfig(cfg *config.Config) store.BM25Config {
	kc := store.DefaultBM25Config()
	if cfg.Search.TitleBoost > 0 {
		kc.TitleBoost = cfg.Search.TitleBoost
	}
	return kc
}

func (b *Builder) report(ev ProgressEvent) {
	if b.progress == nil {
		return
	}
	b.progressMu.Lock()
	defer b.progressMu.Unlock()
	b.progress(ev)
}
