package search

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Aman-CERP/topicsearch/internal/corpus"
	"github.com/Aman-CERP/topicsearch/internal/embed"
	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
)

// DefaultCentroidTemperature scales cosine similarities before the softmax.
const DefaultCentroidTemperature = 0.05

// CentroidClassifier predicts the category whose mean document embedding is
// closest to the query embedding. Confidence is the softmax probability of
// the winner over all categories.
type CentroidClassifier struct {
	embedder    embed.Embedder
	categories  []string
	centroids   [][]float32
	temperature float64
}

var _ QueryClassifier = (*CentroidClassifier)(nil)

// CentroidOption configures a CentroidClassifier.
type CentroidOption func(*CentroidClassifier)

// WithTemperature sets the softmax temperature. Non-positive values are ignored.
func WithTemperature(t float64) CentroidOption {
	return func(c *CentroidClassifier) {
		if t > 0 {
			c.temperature = t
		}
	}
}

// ComputeCentroids averages the embeddings of each category's documents and
// normalizes the result. Documents without an embedding are skipped, as are
// categories with no embedded documents.
func ComputeCentroids(docs []*corpus.Document, categories corpus.CategorySet) map[string][]float32 {
	sums := make(map[string][]float64, categories.Len())
	for _, d := range docs {
		if len(d.Embedding) == 0 || !categories.Contains(d.Category) {
			continue
		}
		sum, ok := sums[d.Category]
		if !ok {
			sum = make([]float64, len(d.Embedding))
			sums[d.Category] = sum
		}
		if len(sum) != len(d.Embedding) {
			continue
		}
		for i, v := range d.Embedding {
			sum[i] += float64(v)
		}
	}

	out := make(map[string][]float32, len(sums))
	for cat, sum := range sums {
		var norm float64
		for _, v := range sum {
			norm += v * v
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		vec := make([]float32, len(sum))
		for i, v := range sum {
			vec[i] = float32(v / norm)
		}
		out[cat] = vec
	}
	return out
}

// NewCentroidClassifier creates a classifier from precomputed centroids.
// Categories are scored in CategorySet order; those without a centroid are
// never predicted.
func NewCentroidClassifier(embedder embed.Embedder, categories corpus.CategorySet, centroids map[string][]float32, opts ...CentroidOption) (*CentroidClassifier, error) {
	c := &CentroidClassifier{
		embedder:    embedder,
		temperature: DefaultCentroidTemperature,
	}
	for _, name := range categories.Names() {
		vec, ok := centroids[name]
		if !ok {
			continue
		}
		if len(vec) != embedder.Dimensions() {
			return nil, fmt.Errorf("centroid for %s has %d dimensions, embedder has %d", name, len(vec), embedder.Dimensions())
		}
		c.categories = append(c.categories, name)
		c.centroids = append(c.centroids, vec)
	}
	if len(c.categories) == 0 {
		return nil, fmt.Errorf("no category centroids available (is the index built with embeddings?)")
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Classify embeds query and returns the nearest centroid's category.
func (c *CentroidClassifier) Classify(ctx context.Context, query string) (QueryClassification, error) {
	if strings.TrimSpace(query) == "" {
		return QueryClassification{Category: corpus.UnknownCategory}, nil
	}

	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return QueryClassification{Category: corpus.UnknownCategory},
			serrors.New(serrors.ErrCodeClassifierUnavailable, "centroid classifier could not embed query", err)
	}

	if isZero(vec) {
		return QueryClassification{Category: corpus.UnknownCategory}, nil
	}

	sims := make([]float64, len(c.centroids))
	best := 0
	for i, centroid := range c.centroids {
		sims[i] = cosine(vec, centroid)
		if sims[i] > sims[best] {
			best = i
		}
	}
	return QueryClassification{
		Category:   c.categories[best],
		Confidence: softmaxAt(sims, best, c.temperature),
	}, nil
}

// softmaxAt returns softmax(x/t)[i], computed stably.
func softmaxAt(x []float64, i int, t float64) float64 {
	maxV := x[0]
	for _, v := range x[1:] {
		maxV = max(maxV, v)
	}
	var sum float64
	for _, v := range x {
		sum += math.Exp((v - maxV) / t)
	}
	return math.Exp((x[i]-maxV)/t) / sum
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
