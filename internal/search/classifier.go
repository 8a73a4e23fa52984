package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/topicsearch/internal/config"
	"github.com/Aman-CERP/topicsearch/internal/corpus"
	"github.com/Aman-CERP/topicsearch/internal/embed"
	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
)

// Default classifier configuration values.
const (
	DefaultClassifierModel     = "qwen3:0.6b"
	DefaultClassifierTimeout   = 5 * time.Second
	DefaultClassifierCacheSize = 1000
)

// Classifier providers.
const (
	ClassifierCentroid = "centroid"
	ClassifierOllama   = "ollama"
	ClassifierHybrid   = "hybrid"
	ClassifierNone     = "none"
)

// =============================================================================
// LLMClassifier
// =============================================================================

// LLMClassifier asks an Ollama model to name the query's category.
type LLMClassifier struct {
	client     *embed.OllamaClient
	model      string
	timeout    time.Duration
	categories corpus.CategorySet
	prompt     string
}

var _ QueryClassifier = (*LLMClassifier)(nil)

// NewLLMClassifier creates a classifier over client.
func NewLLMClassifier(client *embed.OllamaClient, model string, timeout time.Duration, categories corpus.CategorySet) *LLMClassifier {
	if model == "" {
		model = DefaultClassifierModel
	}
	if timeout <= 0 {
		timeout = DefaultClassifierTimeout
	}
	return &LLMClassifier{
		client:     client,
		model:      model,
		timeout:    timeout,
		categories: categories,
		prompt:     buildClassificationPrompt(categories),
	}
}

// buildClassificationPrompt renders the category list into the prompt template.
// The query is appended per call.
func buildClassificationPrompt(categories corpus.CategorySet) string {
	var b strings.Builder
	b.WriteString("You are a topic classifier for a newsgroup search engine. ")
	b.WriteString("Assign the query to exactly ONE of these categories:\n\n")
	for _, c := range categories.Names() {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with ONE line in the form category|confidence, where confidence ")
	b.WriteString("is a number between 0 and 1. If no category fits, respond unknown|0.\n\n")
	b.WriteString("Query: ")
	return b.String()
}

// Classify sends the prompt and parses the reply. Transport failures are
// returned as ClassifierUnavailable; an unparseable reply is unknown/0.
func (l *LLMClassifier) Classify(ctx context.Context, query string) (QueryClassification, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return QueryClassification{Category: corpus.UnknownCategory}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	reply, err := l.client.Generate(ctx, embed.OllamaGenerateRequest{
		Model:   l.model,
		Prompt:  l.prompt + query + "\n\nAnswer:",
		Options: map[string]any{"temperature": 0},
	})
	if err != nil {
		return QueryClassification{Category: corpus.UnknownCategory},
			serrors.New(serrors.ErrCodeClassifierUnavailable, "llm classifier request failed", err).
				WithDetail("model", l.model)
	}
	return parseClassificationResponse(reply, l.categories), nil
}

// parseClassificationResponse reads the first "category|confidence" line.
// Category matching ignores case; confidence is clamped to [0,1].
func parseClassificationResponse(reply string, categories corpus.CategorySet) QueryClassification {
	unknown := QueryClassification{Category: corpus.UnknownCategory}

	var line string
	for _, l := range strings.Split(reply, "\n") {
		l = strings.Trim(strings.TrimSpace(l), "`\"'")
		if l != "" {
			line = l
			break
		}
	}
	if line == "" {
		return unknown
	}

	name, conf, _ := strings.Cut(line, "|")
	category := matchCategory(strings.TrimSpace(name), categories)
	if category == "" {
		return unknown
	}

	confidence, err := strconv.ParseFloat(strings.TrimSpace(conf), 64)
	if err != nil || math.IsNaN(confidence) {
		confidence = 0
	}
	confidence = math.Max(0, math.Min(1, confidence))
	return QueryClassification{Category: category, Confidence: confidence}
}

func matchCategory(name string, categories corpus.CategorySet) string {
	if categories.Contains(name) {
		return name
	}
	for _, c := range categories.Names() {
		if strings.EqualFold(c, name) {
			return c
		}
	}
	return ""
}

// =============================================================================
// HybridClassifier
// =============================================================================

// HybridClassifier tries the LLM first and falls back to centroids.
type HybridClassifier struct {
	llm      QueryClassifier
	fallback QueryClassifier
	logger   *slog.Logger
}

var _ QueryClassifier = (*HybridClassifier)(nil)

// NewHybridClassifier combines llm with fallback. Either may be nil.
func NewHybridClassifier(llm, fallback QueryClassifier, logger *slog.Logger) *HybridClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridClassifier{llm: llm, fallback: fallback, logger: logger}
}

// Classify returns the LLM answer, or the fallback's when the LLM fails.
func (h *HybridClassifier) Classify(ctx context.Context, query string) (QueryClassification, error) {
	if h.llm != nil {
		qc, err := h.llm.Classify(ctx, query)
		if err == nil {
			return qc, nil
		}
		h.logger.Debug("llm_classifier_fallback", slog.String("error", err.Error()))
		if h.fallback == nil {
			return QueryClassification{Category: corpus.UnknownCategory}, err
		}
	}
	if h.fallback == nil {
		return QueryClassification{Category: corpus.UnknownCategory},
			serrors.New(serrors.ErrCodeClassifierUnavailable, "no classifier configured", nil)
	}
	return h.fallback.Classify(ctx, query)
}

// =============================================================================
// CachedClassifier
// =============================================================================

// CachedClassifier memoizes successful classifications in an LRU keyed by
// the normalized query.
type CachedClassifier struct {
	inner QueryClassifier
	cache *lru.Cache[string, QueryClassification]
}

var _ QueryClassifier = (*CachedClassifier)(nil)

// NewCachedClassifier wraps inner. A non-positive size uses the default.
func NewCachedClassifier(inner QueryClassifier, size int) *CachedClassifier {
	if size <= 0 {
		size = DefaultClassifierCacheSize
	}
	cache, _ := lru.New[string, QueryClassification](size)
	return &CachedClassifier{inner: inner, cache: cache}
}

// Classify serves from cache when possible. Errors are not cached.
func (c *CachedClassifier) Classify(ctx context.Context, query string) (QueryClassification, error) {
	key := corpus.Normalize(query)
	if key == "" {
		return QueryClassification{Category: corpus.UnknownCategory}, nil
	}
	if qc, ok := c.cache.Get(key); ok {
		return qc, nil
	}

	qc, err := c.inner.Classify(ctx, query)
	if err != nil {
		return qc, err
	}
	c.cache.Add(key, qc)
	return qc, nil
}

// =============================================================================
// Factory
// =============================================================================

// NewClassifierFromConfig builds the configured classifier, wrapped in a
// cache. Provider "none" returns nil. Centroids are needed for "centroid"
// and serve as the fallback for "hybrid".
func NewClassifierFromConfig(
	cfg config.ClassifierConfig,
	embedder embed.Embedder,
	categories corpus.CategorySet,
	centroids map[string][]float32,
	logger *slog.Logger,
) (QueryClassifier, error) {
	centroid := func() (QueryClassifier, error) {
		return NewCentroidClassifier(embedder, categories, centroids, WithTemperature(cfg.Temperature))
	}
	llm := func() QueryClassifier {
		return NewLLMClassifier(embed.NewOllamaClient(cfg.Host), cfg.Model, cfg.TimeoutDuration(), categories)
	}

	var inner QueryClassifier
	switch strings.ToLower(cfg.Provider) {
	case ClassifierNone:
		return nil, nil
	case ClassifierCentroid, "":
		c, err := centroid()
		if err != nil {
			return nil, err
		}
		inner = c
	case ClassifierOllama:
		inner = llm()
	case ClassifierHybrid:
		fallback, err := centroid()
		if err != nil {
			if logger != nil {
				logger.Warn("centroid_fallback_unavailable", slog.String("error", err.Error()))
			}
			fallback = nil
		}
		inner = NewHybridClassifier(llm(), fallback, logger)
	default:
		return nil, fmt.Errorf("unknown classifier provider: %s (valid options: centroid, ollama, hybrid, none)", cfg.Provider)
	}
	return NewCachedClassifier(inner, cfg.CacheSize), nil
}
