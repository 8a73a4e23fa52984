// Package embed turns text into dense vectors for the semantic searcher and
// the centroid classifier.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultBatchSize is the number of texts sent per remote request.
	DefaultBatchSize = 32

	// MaxBatchSize caps remote request size.
	MaxBatchSize = 256

	// DefaultTimeout bounds a single remote embedding request.
	DefaultTimeout = 30 * time.Second

	// StaticDimensions is the default width of hash embeddings.
	StaticDimensions = 256

	// DefaultEmbeddingCacheSize is the default query embedding LRU size.
	DefaultEmbeddingCacheSize = 1000
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimensions() int
	ModelName() string

	// Available reports whether the embedder can serve requests.
	Available(ctx context.Context) bool

	Close() error
}

// normalizeVector returns v scaled to unit length. Zero vectors are returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
