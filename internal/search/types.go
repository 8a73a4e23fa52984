// Package search merges a lexical and a semantic ranking into one result list
// with Reciprocal Rank Fusion, optionally narrowed to a topical category
// inferred from the query.
package search

import (
	"context"
	"time"

	"github.com/Aman-CERP/topicsearch/internal/config"
	"github.com/Aman-CERP/topicsearch/internal/corpus"
)

// Source names used in logs, metrics and DegradedSources.
const (
	SourceLexical  = "lexical"
	SourceSemantic = "semantic"
)

// RankedHit is one entry of a searcher's ranking. Scores are only meaningful
// within the list that produced them.
type RankedHit struct {
	DocID string
	Score float64
}

// FusedHit is one entry of the fused ranking.
type FusedHit struct {
	DocID string

	// Score is the non-negative RRF score.
	Score float64

	// LexicalRank and SemanticRank are 1-based positions in the input
	// lists, 0 when the id was absent from that list.
	LexicalRank  int
	SemanticRank int
}

// QueryClassification is a classifier's guess at the query's category.
type QueryClassification struct {
	// Category is a member of the CategorySet or corpus.UnknownCategory.
	Category string `json:"category"`

	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`
}

// SearchResult is one resolved result of a query.
type SearchResult struct {
	Document *corpus.Document
	Score    float64

	// Rank is 1-based and dense over the returned results.
	Rank int

	LexicalRank  int
	SemanticRank int
}

// Request is a single query.
type Request struct {
	Query string

	// CategoryFilter, when set, restricts results to that category and
	// skips classification.
	CategoryFilter string

	// UseQueryClassification lets a confident classifier pick the filter.
	UseQueryClassification bool

	TopK int

	// Alpha overrides the configured lexical weight when non-nil.
	Alpha *float64
}

// Response is the outcome of a query.
type Response struct {
	Query string

	// Classification is nil when the classifier did not run or failed.
	Classification *QueryClassification

	// CategoryFilter is the filter actually applied, "" for none.
	CategoryFilter string

	Results      []*SearchResult
	TotalResults int

	// Degraded is true when one searcher failed and the other's ranking
	// was used alone.
	Degraded        bool
	DegradedSources []string

	Took time.Duration
}

// LexicalSearcher ranks documents by keyword relevance. A non-empty
// category restricts candidates to that category.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, category string, topK int) ([]RankedHit, error)
}

// SemanticSearcher ranks documents by embedding similarity.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]RankedHit, error)
}

// QueryClassifier predicts a topical category for a query.
type QueryClassifier interface {
	Classify(ctx context.Context, query string) (QueryClassification, error)
}

// DocumentStore resolves fused ids to documents.
type DocumentStore interface {
	Get(id string) (*corpus.Document, bool)

	// Snapshot returns the category of every known id in ids.
	Snapshot(ids []string) map[string]string
}

var _ DocumentStore = (*corpus.Store)(nil)

// Config tunes the orchestrator.
type Config struct {
	// Alpha is the lexical weight in [0,1]; semantic gets 1-Alpha.
	Alpha float64

	// RRFConstant is the smoothing constant k.
	RRFConstant int

	// CandidateCount is how many hits each searcher is asked for. It is
	// raised to TopK when smaller.
	CandidateCount int

	DefaultTopK int
	MaxTopK     int

	// ConfidenceThreshold must be strictly exceeded before a classified
	// category becomes the filter.
	ConfidenceThreshold float64

	SearcherTimeout time.Duration

	// LexicalPrefilter also passes the filter to the lexical searcher.
	// Fusion filters afterwards either way.
	LexicalPrefilter bool
}

// Default orchestrator settings.
const (
	DefaultAlpha               = 0.5
	DefaultRRFConstant         = 60
	DefaultCandidateCount      = 100
	DefaultTopK                = 10
	DefaultMaxTopK             = 100
	DefaultConfidenceThreshold = 0.7
	DefaultSearcherTimeout     = 5 * time.Second
)

// DefaultConfig returns the default orchestrator settings.
func DefaultConfig() Config {
	return Config{
		Alpha:               DefaultAlpha,
		RRFConstant:         DefaultRRFConstant,
		CandidateCount:      DefaultCandidateCount,
		DefaultTopK:         DefaultTopK,
		MaxTopK:             DefaultMaxTopK,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		SearcherTimeout:     DefaultSearcherTimeout,
	}
}

// ConfigFromSearch converts the file configuration.
func ConfigFromSearch(s config.SearchConfig) Config {
	cfg := Config{
		Alpha:               s.Alpha,
		RRFConstant:         s.RRFConstant,
		CandidateCount:      s.CandidateCount,
		DefaultTopK:         s.DefaultTopK,
		MaxTopK:             s.MaxTopK,
		ConfidenceThreshold: s.ConfidenceThreshold,
		SearcherTimeout:     s.SearcherTimeoutDuration(),
		LexicalPrefilter:    s.LexicalPrefilter,
	}
	if cfg.CandidateCount <= 0 {
		cfg.CandidateCount = DefaultCandidateCount
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DefaultTopK
	}
	if cfg.SearcherTimeout <= 0 {
		cfg.SearcherTimeout = DefaultSearcherTimeout
	}
	return cfg
}
