package search

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/topicsearch/internal/embed"
	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/internal/store"
)

// BM25Searcher adapts a keyword index to LexicalSearcher.
type BM25Searcher struct {
	index store.BM25Index
}

var _ LexicalSearcher = (*BM25Searcher)(nil)

// NewBM25Searcher wraps index.
func NewBM25Searcher(index store.BM25Index) *BM25Searcher {
	return &BM25Searcher{index: index}
}

// Search queries the index. Failures become BackendUnavailable errors.
func (s *BM25Searcher) Search(ctx context.Context, query string, category string, topK int) ([]RankedHit, error) {
	results, err := s.index.Search(ctx, query, category, topK)
	if err != nil {
		return nil, serrors.BackendError(SourceLexical, err)
	}
	out := make([]RankedHit, len(results))
	for i, r := range results {
		out[i] = RankedHit{DocID: r.DocID, Score: r.Score}
	}
	return out, nil
}

// VectorSearcher adapts an embedder and a vector store to SemanticSearcher.
type VectorSearcher struct {
	embedder embed.Embedder
	vectors  store.VectorStore
}

var _ SemanticSearcher = (*VectorSearcher)(nil)

// NewVectorSearcher wraps embedder and vectors.
func NewVectorSearcher(embedder embed.Embedder, vectors store.VectorStore) *VectorSearcher {
	return &VectorSearcher{embedder: embedder, vectors: vectors}
}

// Search embeds the query and returns its nearest documents.
func (s *VectorSearcher) Search(ctx context.Context, query string, topK int) ([]RankedHit, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, serrors.BackendError(SourceSemantic, fmt.Errorf("embed query: %w", err))
	}

	results, err := s.vectors.Search(ctx, vec, topK)
	if err != nil {
		return nil, serrors.BackendError(SourceSemantic, err)
	}
	out := make([]RankedHit, len(results))
	for i, r := range results {
		out[i] = RankedHit{DocID: r.ID, Score: float64(r.Score)}
	}
	return out, nil
}
