package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/topicsearch/internal/config"
	"github.com/Aman-CERP/topicsearch/internal/corpus"
	"github.com/Aman-CERP/topicsearch/internal/embed"
	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/internal/store"
)

// Indexes is an opened data directory, ready to back the searchers.
type Indexes struct {
	DataDir  string
	Manifest *Manifest
	Corpus   *corpus.Store
	BM25     store.BM25Index
	Vectors  *store.HNSWStore
}

// Open loads the artifacts of the last build in the configured data
// directory. The embedder must produce vectors of the dimension the index
// was built with; a nil embedder skips that check.
func Open(ctx context.Context, cfg *config.Config, embedder embed.Embedder, logger *slog.Logger) (*Indexes, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dataDir := cfg.Index.DataDir

	manifest, err := ReadManifest(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serrors.New(serrors.ErrCodeConfigNotFound,
				fmt.Sprintf("no index found in %s", dataDir), err).
				WithSuggestion("Run 'topicsearch index --corpus <file.jsonl>' first")
		}
		return nil, serrors.New(serrors.ErrCodeIndexFailed, "read index manifest", err)
	}

	if embedder != nil {
		if embedder.Dimensions() != manifest.Dimensions {
			return nil, serrors.New(serrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("index was built with %d-dimensional %s embeddings, embedder %s produces %d",
					manifest.Dimensions, manifest.EmbedderModel, embedder.ModelName(), embedder.Dimensions()), nil).
				WithSuggestion("Run 'topicsearch index' again or restore the embeddings configuration")
		}
		if embedder.ModelName() != manifest.EmbedderModel {
			logger.Warn("embedder_model_changed",
				slog.String("indexed_with", manifest.EmbedderModel),
				slog.String("current", embedder.ModelName()))
		}
	}

	repo, err := corpus.OpenSQLiteRepository(filepath.Join(dataDir, CorpusFile))
	if err != nil {
		return nil, err
	}
	docs, categories, err := repo.Load(ctx)
	closeErr := repo.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	if closeErr != nil {
		return nil, closeErr
	}
	docStore, err := corpus.NewStore(docs, categories)
	if err != nil {
		return nil, err
	}

	bm25, err := store.NewBM25IndexWithBackend(filepath.Join(dataDir, BM25Base), KeywordConfig(cfg), manifest.LexicalBackend)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(manifest.Dimensions))
	if err != nil {
		_ = bm25.Close()
		return nil, err
	}
	if err := vectors.Load(filepath.Join(dataDir, VectorFile)); err != nil {
		_ = bm25.Close()
		_ = vectors.Close()
		return nil, fmt.Errorf("failed to load vector store: %w", err)
	}

	ix := &Indexes{
		DataDir:  dataDir,
		Manifest: manifest,
		Corpus:   docStore,
		BM25:     bm25,
		Vectors:  vectors,
	}

	ok, err := NewConsistencyChecker(docStore, bm25, vectors).QuickCheck(ctx)
	if err != nil {
		logger.Warn("consistency_check_failed", slog.String("error", err.Error()))
	} else if !ok {
		logger.Warn("index_counts_mismatch",
			slog.String("data_dir", dataDir),
			slog.String("suggestion", "run 'topicsearch index --check' for details"))
	}

	logger.Debug("index_opened",
		slog.String("data_dir", dataDir),
		slog.Int("documents", docStore.Len()),
		slog.Int("vectors", vectors.Count()))
	return ix, nil
}

// Repair checks the stores and deletes orphan keyword entries and vectors,
// then saves the vector store. It holds the build lock while it runs and
// returns the check taken before repairing. Missing entries need a rebuild.
func (ix *Indexes) Repair(ctx context.Context) (*CheckResult, error) {
	lock := NewBuildLock(ix.DataDir)
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

	checker := NewConsistencyChecker(ix.Corpus, ix.BM25, ix.Vectors)
	result, err := checker.Check(ctx)
	if err != nil {
		return nil, err
	}
	if result.Consistent() {
		return result, nil
	}
	if err := checker.Repair(ctx, result.Inconsistencies); err != nil {
		return nil, serrors.New(serrors.ErrCodeIndexFailed, "repair index", err)
	}
	if result.Count(InconsistencyOrphanVector) > 0 {
		if err := ix.Vectors.Save(filepath.Join(ix.DataDir, VectorFile)); err != nil {
			return nil, serrors.New(serrors.ErrCodeIndexFailed, "save vector store", err)
		}
	}
	return result, nil
}

// Close releases the keyword index and vector store.
func (ix *Indexes) Close() error {
	return errors.Join(ix.BM25.Close(), ix.Vectors.Close())
}
