package eval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Worked example: relevant {d1, d3}, retrieved [d2, d1, d4, d3, d5]
// =============================================================================

var (
	exampleRelevant  = []string{"d1", "d3"}
	exampleRetrieved = []string{"d2", "d1", "d4", "d3", "d5"}
)

func TestMetrics_WorkedExample(t *testing.T) {
	assert.InDelta(t, 1.0/3, PrecisionAtK(exampleRelevant, exampleRetrieved, 3), 1e-12)
	assert.InDelta(t, 0.5, RecallAtK(exampleRelevant, exampleRetrieved, 3), 1e-12)
	assert.InDelta(t, 0.5, MRR(exampleRelevant, exampleRetrieved), 1e-12)
	assert.InDelta(t, 0.631, NDCGAtK(exampleRelevant, exampleRetrieved, 3), 1e-3)
	assert.InDelta(t, 1/math.Log2(3), NDCGAtK(exampleRelevant, exampleRetrieved, 3), 1e-12)
}

func TestPrecisionAtK(t *testing.T) {
	tests := []struct {
		name      string
		relevant  []string
		retrieved []string
		k         int
		want      float64
	}{
		{"k zero", exampleRelevant, exampleRetrieved, 0, 0},
		{"k negative", exampleRelevant, exampleRetrieved, -2, 0},
		{"divides by k when short", []string{"a"}, []string{"a"}, 5, 0.2},
		{"all relevant", []string{"a", "b"}, []string{"b", "a"}, 2, 1},
		{"nothing retrieved", []string{"a"}, nil, 3, 0},
		{"k beyond retrieved", exampleRelevant, exampleRetrieved, 10, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PrecisionAtK(tt.relevant, tt.retrieved, tt.k), 1e-12)
		})
	}
}

func TestRecallAtK(t *testing.T) {
	tests := []struct {
		name      string
		relevant  []string
		retrieved []string
		k         int
		want      float64
	}{
		{"empty relevant", nil, exampleRetrieved, 3, 0},
		{"k zero", exampleRelevant, exampleRetrieved, 0, 0},
		{"full recall at 4", exampleRelevant, exampleRetrieved, 4, 1},
		{"duplicate judgements are a set", []string{"d1", "d1", "d3"}, exampleRetrieved, 3, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RecallAtK(tt.relevant, tt.retrieved, tt.k), 1e-12)
		})
	}
}

func TestNDCGAtK(t *testing.T) {
	tests := []struct {
		name      string
		relevant  []string
		retrieved []string
		k         int
		want      float64
	}{
		{"no relevant in top k", []string{"z"}, exampleRetrieved, 5, 0},
		{"perfect ordering", []string{"a", "b"}, []string{"a", "b", "c"}, 3, 1},
		{"k zero", exampleRelevant, exampleRetrieved, 0, 0},
		{
			name:      "two hits at 2 and 4",
			relevant:  exampleRelevant,
			retrieved: exampleRetrieved,
			k:         5,
			want:      (1/math.Log2(3) + 1/math.Log2(5)) / (1 + 1/math.Log2(3)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NDCGAtK(tt.relevant, tt.retrieved, tt.k)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestMRR(t *testing.T) {
	assert.Equal(t, 1.0, MRR([]string{"a"}, []string{"a", "b"}))
	assert.Equal(t, 0.25, MRR([]string{"d"}, []string{"a", "b", "c", "d"}))
	assert.Equal(t, 0.0, MRR([]string{"x"}, []string{"a"}))
	assert.Equal(t, 0.0, MRR(nil, nil))
}

func TestMetrics_Deterministic(t *testing.T) {
	for range 10 {
		assert.Equal(t, NDCGAtK(exampleRelevant, exampleRetrieved, 3), NDCGAtK(exampleRelevant, exampleRetrieved, 3))
	}
}
