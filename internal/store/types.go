// Package store provides the keyword (BM25) and vector indexes behind the
// lexical and semantic searchers.
package store

import (
	"context"
	"fmt"
)

// Document is the unit indexed for keyword search.
type Document struct {
	ID       string
	Title    string
	Content  string
	Category string
}

// BM25Result is a single keyword search hit. Scores are only comparable
// within one result list.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about a keyword index.
type IndexStats struct {
	DocumentCount int
}

// BM25Index provides keyword search with BM25 scoring.
type BM25Index interface {
	// Index adds or replaces documents.
	Index(ctx context.Context, docs []*Document) error

	// Search returns up to limit documents matching query, best first.
	// A non-empty category restricts hits to that category.
	Search(ctx context.Context, query string, category string, limit int) ([]*BM25Result, error)

	// Delete removes documents by id.
	Delete(ctx context.Context, docIDs []string) error

	// AllIDs returns every indexed id.
	AllIDs() ([]string, error)

	Stats() *IndexStats
	Close() error
}

// BM25Config configures a keyword index.
type BM25Config struct {
	// StopWords are dropped at index and query time.
	StopWords []string

	// MinTokenLength is the shortest token kept (default: 2).
	MinTokenLength int

	// TitleBoost multiplies the weight of title matches (default: 2.0).
	TitleBoost float64
}

// DefaultBM25Config returns the default keyword index configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		StopWords:      DefaultEnglishStopWords,
		MinTokenLength: 2,
		TitleBoost:     2.0,
	}
}

func (c BM25Config) withDefaults() BM25Config {
	if c.MinTokenLength <= 0 {
		c.MinTokenLength = 2
	}
	if c.TitleBoost <= 0 {
		c.TitleBoost = 2.0
	}
	return c
}

// DefaultEnglishStopWords are function words with no topical signal.
var DefaultEnglishStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from",
	"has", "have", "he", "her", "his", "if", "in", "into", "is", "it", "its",
	"me", "my", "not", "of", "on", "or", "our", "she", "so", "such", "that",
	"the", "their", "them", "then", "there", "these", "they", "this", "to",
	"was", "we", "were", "what", "when", "which", "who", "will", "with",
	"would", "you", "your",
}

// VectorResult is a single nearest-neighbour hit.
type VectorResult struct {
	ID string
	// Distance is lower for closer vectors (0-2 for cosine).
	Distance float32
	// Score is the similarity derived from Distance, higher is better.
	Score float32
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	Dimensions int

	// Metric is "cos" (default) or "l2".
	Metric string

	// M is the HNSW max connections per layer (default: 16).
	M int

	// EfSearch is the HNSW query-time search width (default: 64).
	EfSearch int
}

// DefaultVectorStoreConfig returns defaults for the given dimension.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides approximate nearest-neighbour search.
type VectorStore interface {
	// Add inserts vectors; an existing id is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search returns up to k nearest ids to query, closest first.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	Delete(ctx context.Context, ids []string) error
	Contains(id string) bool
	Count() int
	AllIDs() []string

	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector of the wrong dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'topicsearch index' again)", e.Expected, e.Got)
}
