package index

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/topicsearch/internal/config"
	"github.com/Aman-CERP/topicsearch/internal/corpus"
	"github.com/Aman-CERP/topicsearch/internal/embed"
	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/internal/store"
)

// =============================================================================
// Fixtures
// =============================================================================

var testCategories = corpus.MustCategorySet("sci.space", "rec.autos", "rec.sport.hockey")

func testDocuments() []corpus.Document {
	return []corpus.Document{
		{ID: "s1", Title: "Shuttle launch", Content: "The shuttle launch was delayed by weather at the cape", Category: "sci.space"},
		{ID: "s2", Title: "Orbit insertion", Content: "Orbital insertion burn for the probe went as planned", Category: "sci.space"},
		{ID: "a1", Title: "Engine oil", Content: "Change the engine oil every five thousand miles", Category: "rec.autos"},
		{ID: "a2", Title: "Brake pads", Content: "Squeaky brake pads usually need replacing", Category: "rec.autos"},
		{ID: "h1", Title: "Playoff goalie", Content: "The goalie stopped forty shots in the playoff game", Category: "rec.sport.hockey"},
		{ID: "h2", Title: "Power play", Content: "Their power play scored twice in the third period", Category: "rec.sport.hockey"},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Index.DataDir = t.TempDir()
	cfg.Index.Workers = 2
	cfg.Embeddings.BatchSize = 2
	return cfg
}

type failingEmbedder struct {
	embed.Embedder
	err error
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, f.err
}

type shortEmbedder struct {
	embed.Embedder
}

func (s *shortEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

type countingEmbedder struct {
	embed.Embedder
	mu    sync.Mutex
	texts int
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.texts += len(texts)
	c.mu.Unlock()
	return c.Embedder.EmbedBatch(ctx, texts)
}

func newBuilder(t *testing.T, cfg *config.Config, e embed.Embedder, progress ProgressFunc) *Builder {
	t.Helper()
	b, err := NewBuilder(BuilderDependencies{Config: cfg, Embedder: e, Progress: progress})
	require.NoError(t, err)
	return b
}

// =============================================================================
// Build
// =============================================================================

func TestBuilder_BuildThenOpen(t *testing.T) {
	// Given: a small corpus and a static embedder
	cfg := testConfig(t)
	embedder := embed.NewStaticEmbedderWithDimensions(64)

	var mu sync.Mutex
	var events []ProgressEvent
	b := newBuilder(t, cfg, embedder, func(ev ProgressEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	// When: building
	docs := testDocuments()
	result, err := b.Build(context.Background(), docs, testCategories)

	// Then: the manifest describes the build
	require.NoError(t, err)
	assert.Equal(t, 6, result.Manifest.Documents)
	assert.Equal(t, 64, result.Manifest.Dimensions)
	assert.Equal(t, embedder.ModelName(), result.Manifest.EmbedderModel)
	assert.Equal(t, testCategories.Names(), result.Manifest.Categories)
	assert.Len(t, result.Stats, 3)

	// And: the caller's documents are untouched
	assert.Nil(t, docs[0].Embedding)

	// And: the artifacts are in place and staging is gone
	dir := cfg.Index.DataDir
	assert.FileExists(t, filepath.Join(dir, CorpusFile))
	assert.DirExists(t, filepath.Join(dir, BM25Base+".bleve"))
	assert.FileExists(t, filepath.Join(dir, VectorFile))
	assert.FileExists(t, filepath.Join(dir, ManifestFile))
	assert.NoDirExists(t, filepath.Join(dir, stagingDir))

	// And: embedding progress reached the total
	var lastEmbed ProgressEvent
	for _, ev := range events {
		if ev.Stage == StageEmbedding {
			lastEmbed = ev
		}
	}
	assert.Equal(t, ProgressEvent{Stage: StageEmbedding, Current: 6, Total: 6}, lastEmbed)

	// When: opening the data directory
	ix, err := Open(context.Background(), cfg, embedder, nil)
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()

	// Then: every store holds the corpus
	assert.Equal(t, 6, ix.Corpus.Len())
	assert.Equal(t, 6, ix.Vectors.Count())
	assert.Equal(t, []string{"sci.space", "rec.autos", "rec.sport.hockey"}, ix.Corpus.Categories().Names())

	doc, ok := ix.Corpus.Get("a1")
	require.True(t, ok)
	assert.Len(t, doc.Embedding, 64)

	hits, err := ix.BM25.Search(context.Background(), "goalie playoff", "", 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "h1", hits[0].DocID)

	check, err := NewConsistencyChecker(ix.Corpus, ix.BM25, ix.Vectors).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, check.Consistent())
	assert.Equal(t, 6, check.Checked)
}

func TestBuilder_KeepsPrecomputedEmbeddings(t *testing.T) {
	// Given: one document with a usable embedding and one with a wrong-sized one
	cfg := testConfig(t)
	embedder := &countingEmbedder{Embedder: embed.NewStaticEmbedderWithDimensions(64)}
	docs := testDocuments()
	own := make([]float32, 64)
	own[5] = 1
	docs[0].Embedding = own
	docs[3].Embedding = []float32{0.1, 0.2, 0.3}

	// When: building
	result, err := newBuilder(t, cfg, embedder, nil).Build(context.Background(), docs, testCategories)
	require.NoError(t, err)

	// Then: only the other documents went through the embedder
	assert.Equal(t, 1, result.Precomputed)
	assert.Equal(t, 5, embedder.texts)

	// And: the stored vectors are the document's own and a fresh 64-dim one
	ix, err := Open(context.Background(), cfg, embedder, nil)
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()
	s1, ok := ix.Corpus.Get("s1")
	require.True(t, ok)
	assert.Equal(t, own, s1.Embedding)
	a2, ok := ix.Corpus.Get("a2")
	require.True(t, ok)
	assert.Len(t, a2.Embedding, 64)
	assert.Equal(t, 6, ix.Vectors.Count())
}

func TestBuilder_RebuildWithOtherBackend(t *testing.T) {
	cfg := testConfig(t)
	embedder := embed.NewStaticEmbedderWithDimensions(32)

	_, err := newBuilder(t, cfg, embedder, nil).Build(context.Background(), testDocuments(), testCategories)
	require.NoError(t, err)

	// When: rebuilding with the SQLite keyword backend
	cfg.Search.LexicalBackend = "sqlite"
	result, err := newBuilder(t, cfg, embedder, nil).Build(context.Background(), testDocuments()[:4], testCategories)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", result.Manifest.LexicalBackend)

	// Then: the bleve index is gone and the new build is served
	dir := cfg.Index.DataDir
	assert.NoDirExists(t, filepath.Join(dir, BM25Base+".bleve"))
	assert.FileExists(t, filepath.Join(dir, BM25Base+".db"))

	ix, err := Open(context.Background(), cfg, embedder, nil)
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()
	assert.Equal(t, 4, ix.Corpus.Len())

	hits, err := ix.BM25.Search(context.Background(), "brake", "", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a2", hits[0].DocID)
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name     string
		docs     []corpus.Document
		embedder func() embed.Embedder
		wantCode string
	}{
		{
			name:     "empty corpus",
			docs:     nil,
			embedder: func() embed.Embedder { return embed.NewStaticEmbedderWithDimensions(16) },
			wantCode: serrors.ErrCodeInvalidInput,
		},
		{
			name: "embedder failure",
			docs: testDocuments(),
			embedder: func() embed.Embedder {
				return &failingEmbedder{Embedder: embed.NewStaticEmbedderWithDimensions(16), err: errors.New("ollama down")}
			},
			wantCode: serrors.ErrCodeEmbeddingFailed,
		},
		{
			name:     "wrong vector length",
			docs:     testDocuments(),
			embedder: func() embed.Embedder { return &shortEmbedder{Embedder: embed.NewStaticEmbedderWithDimensions(16)} },
			wantCode: serrors.ErrCodeDimensionMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			_, err := newBuilder(t, cfg, tt.embedder(), nil).Build(context.Background(), tt.docs, testCategories)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, serrors.GetCode(err))
			assert.NoDirExists(t, filepath.Join(cfg.Index.DataDir, stagingDir))
		})
	}
}

func TestBuilder_FailedRebuildKeepsPreviousIndex(t *testing.T) {
	// Given: a successful build
	cfg := testConfig(t)
	embedder := embed.NewStaticEmbedderWithDimensions(16)
	_, err := newBuilder(t, cfg, embedder, nil).Build(context.Background(), testDocuments(), testCategories)
	require.NoError(t, err)

	// When: a rebuild fails while embedding
	broken := &failingEmbedder{Embedder: embedder, err: errors.New("boom")}
	_, err = newBuilder(t, cfg, broken, nil).Build(context.Background(), testDocuments()[:2], testCategories)
	require.Error(t, err)

	// Then: the first build is still served
	ix, err := Open(context.Background(), cfg, embedder, nil)
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()
	assert.Equal(t, 6, ix.Corpus.Len())
}

func TestBuilder_ConcurrentBuildRefused(t *testing.T) {
	cfg := testConfig(t)
	lock := NewBuildLock(cfg.Index.DataDir)
	require.NoError(t, lock.Lock())
	defer func() { _ = lock.Unlock() }()

	_, err := newBuilder(t, cfg, embed.NewStaticEmbedderWithDimensions(16), nil).
		Build(context.Background(), testDocuments(), testCategories)

	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeIndexFailed, serrors.GetCode(err))
	assert.Contains(t, err.Error(), "another build")
}

func TestBuilder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig(t)
	broken := &failingEmbedder{Embedder: embed.NewStaticEmbedderWithDimensions(16), err: context.Canceled}
	_, err := newBuilder(t, cfg, broken, nil).Build(ctx, testDocuments(), testCategories)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewBuilder_RequiresDependencies(t *testing.T) {
	_, err := NewBuilder(BuilderDependencies{Embedder: embed.NewStaticEmbedder()})
	assert.ErrorContains(t, err, "config")

	_, err = NewBuilder(BuilderDependencies{Config: config.NewConfig()})
	assert.ErrorContains(t, err, "embedder")
}

// =============================================================================
// Open
// =============================================================================

func TestOpen_NoIndex(t *testing.T) {
	_, err := Open(context.Background(), testConfig(t), embed.NewStaticEmbedder(), nil)

	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeConfigNotFound, serrors.GetCode(err))
	assert.ErrorIs(t, err, serrors.ErrConfiguration)
}

func TestOpen_DimensionMismatch(t *testing.T) {
	cfg := testConfig(t)
	_, err := newBuilder(t, cfg, embed.NewStaticEmbedderWithDimensions(16), nil).
		Build(context.Background(), testDocuments(), testCategories)
	require.NoError(t, err)

	_, err = Open(context.Background(), cfg, embed.NewStaticEmbedderWithDimensions(32), nil)

	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeDimensionMismatch, serrors.GetCode(err))
}

func TestManifest_RoundTripAndVersion(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{Version: ManifestVersion, EmbedderModel: "static", Dimensions: 8, Documents: 3}
	require.NoError(t, WriteManifest(dir, m))

	got, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "static", got.EmbedderModel)
	assert.Equal(t, 8, got.Dimensions)

	m.Version = ManifestVersion + 1
	require.NoError(t, WriteManifest(dir, m))
	_, err = ReadManifest(dir)
	assert.ErrorContains(t, err, "not supported")
}

// =============================================================================
// Repair
// =============================================================================

func TestIndexes_RepairRemovesOrphansAndPersists(t *testing.T) {
	// Given: a built index with a stray keyword entry and a stray vector
	cfg := testConfig(t)
	embedder := embed.NewStaticEmbedderWithDimensions(64)
	_, err := newBuilder(t, cfg, embedder, nil).Build(context.Background(), testDocuments(), testCategories)
	require.NoError(t, err)

	ix, err := Open(context.Background(), cfg, embedder, nil)
	require.NoError(t, err)
	ghostVec := make([]float32, 64)
	ghostVec[0] = 1
	require.NoError(t, ix.Vectors.Add(context.Background(), []string{"ghost"}, [][]float32{ghostVec}))
	require.NoError(t, ix.BM25.Index(context.Background(), []*store.Document{
		{ID: "ghost", Title: "Ghost", Content: "nobody owns this entry", Category: "sci.space"},
	}))

	// When: repairing
	result, err := ix.Repair(context.Background())
	require.NoError(t, err)

	// Then: the result lists the orphans found
	assert.Equal(t, 1, result.Count(InconsistencyOrphanVector))
	assert.Equal(t, 1, result.Count(InconsistencyOrphanBM25))
	require.NoError(t, ix.Close())

	// And: the repair survives a reopen
	ix, err = Open(context.Background(), cfg, embedder, nil)
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()
	assert.False(t, ix.Vectors.Contains("ghost"))
	after, err := NewConsistencyChecker(ix.Corpus, ix.BM25, ix.Vectors).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, after.Consistent())
}

func TestIndexes_RepairRefusedDuringBuild(t *testing.T) {
	cfg := testConfig(t)
	embedder := embed.NewStaticEmbedderWithDimensions(64)
	_, err := newBuilder(t, cfg, embedder, nil).Build(context.Background(), testDocuments(), testCategories)
	require.NoError(t, err)

	ix, err := Open(context.Background(), cfg, embedder, nil)
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()

	held := NewBuildLock(cfg.Index.DataDir)
	require.NoError(t, held.Lock())
	defer func() { _ = held.Unlock() }()

	_, err = ix.Repair(context.Background())
	assert.Equal(t, serrors.ErrCodeIndexFailed, serrors.GetCode(err))
}
