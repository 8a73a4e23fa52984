package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/Aman-CERP/topicsearch/internal/corpus"
)

// StaticEmbedder produces deterministic hash embeddings with no model or
// network. Words and character trigrams are hashed into buckets, so texts
// sharing vocabulary land near each other.
type StaticEmbedder struct {
	dims int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

const (
	wordWeight  = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// staticStopWords carry no topical signal.
var staticStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "that": true, "the": true,
	"this": true, "to": true, "was": true, "with": true,
}

// NewStaticEmbedder creates a hash embedder with StaticDimensions.
func NewStaticEmbedder() *StaticEmbedder {
	return NewStaticEmbedderWithDimensions(StaticDimensions)
}

// NewStaticEmbedderWithDimensions creates a hash embedder of the given width.
// Non-positive widths fall back to StaticDimensions.
func NewStaticEmbedderWithDimensions(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed hashes text into a unit vector. Blank text yields the zero vector.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	normalized := corpus.Normalize(text)
	if normalized == "" {
		return make([]float32, e.dims), nil
	}
	return normalizeVector(e.generateVector(normalized)), nil
}

func (e *StaticEmbedder) generateVector(normalized string) []float32 {
	vector := make([]float32, e.dims)

	for _, word := range strings.Fields(normalized) {
		if staticStopWords[word] {
			continue
		}
		vector[hashToIndex(word, e.dims)] += wordWeight
	}

	for _, gram := range extractNgrams(strings.ReplaceAll(normalized, " ", ""), ngramSize) {
		vector[hashToIndex("#"+gram, e.dims)] += ngramWeight
	}
	return vector
}

// extractNgrams returns n-rune sliding windows.
func extractNgrams(text string, n int) []string {
	runes := []rune(text)
	if len(runes) < n {
		return []string{}
	}
	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i <= len(runes)-n; i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}

// hashToIndex maps s onto [0, size) with FNV-64.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch embeds each text in order.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = emb
	}
	return results, nil
}

// Dimensions returns the vector width.
func (e *StaticEmbedder) Dimensions() int { return e.dims }

// ModelName returns "static".
func (e *StaticEmbedder) ModelName() string { return "static" }

// Available is true until Close.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
