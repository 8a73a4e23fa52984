package search

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/topicsearch/internal/corpus"
	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
)

// --- Test Helpers ---

var testCategories = corpus.MustCategorySet("sci.space", "rec.autos", "rec.sport.hockey")

func hits(ids ...string) []RankedHit {
	out := make([]RankedHit, len(ids))
	for i, id := range ids {
		out[i] = RankedHit{DocID: id, Score: float64(len(ids) - i)}
	}
	return out
}

func fusedIDs(fused []FusedHit) []string {
	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.DocID
	}
	return ids
}

func defaultFuseOptions() FuseOptions {
	return FuseOptions{Alpha: 0.5, RRFConstant: 60}
}

// =============================================================================
// Scoring
// =============================================================================

func TestFuse_WeightedRRFScores(t *testing.T) {
	// Given: lexical [A, B] and semantic [B, C]
	engine := NewFusionEngine(testCategories)

	// When: fusing with alpha 0.5 and k 60
	fused, err := engine.Fuse(hits("A", "B"), hits("B", "C"), defaultFuseOptions())
	require.NoError(t, err)

	// Then: B accumulates both contributions, ranks are 0-based in the formula
	require.Equal(t, []string{"B", "A", "C"}, fusedIDs(fused))
	assert.InDelta(t, 0.5/62+0.5/61, fused[0].Score, 1e-12)
	assert.InDelta(t, 0.5/61, fused[1].Score, 1e-12)
	assert.InDelta(t, 0.5/62, fused[2].Score, 1e-12)

	assert.Equal(t, 2, fused[0].LexicalRank)
	assert.Equal(t, 1, fused[0].SemanticRank)
	assert.Equal(t, 0, fused[1].SemanticRank, "absent from semantic list")
}

func TestFuse_ZeroRRFConstantAllowed(t *testing.T) {
	engine := NewFusionEngine(testCategories)

	fused, err := engine.Fuse(hits("A"), nil, FuseOptions{Alpha: 1, RRFConstant: 0})
	require.NoError(t, err)
	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0, fused[0].Score, 1e-12)
}

func TestFuse_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts FuseOptions
	}{
		{"alpha below zero", FuseOptions{Alpha: -0.1, RRFConstant: 60}},
		{"alpha above one", FuseOptions{Alpha: 1.1, RRFConstant: 60}},
		{"alpha NaN", FuseOptions{Alpha: math.NaN(), RRFConstant: 60}},
		{"negative k", FuseOptions{Alpha: 0.5, RRFConstant: -1}},
	}

	engine := NewFusionEngine(testCategories)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fused, err := engine.Fuse(hits("A"), hits("B"), tt.opts)
			require.Error(t, err)
			assert.Nil(t, fused)
			assert.True(t, errors.Is(err, serrors.ErrConfiguration))
			assert.Equal(t, serrors.ErrCodeConfigInvalid, serrors.GetCode(err))
		})
	}
}

func TestFuse_BoundaryAlphasAreValid(t *testing.T) {
	engine := NewFusionEngine(testCategories)
	for _, alpha := range []float64{0, 1} {
		_, err := engine.Fuse(hits("A"), hits("B"), FuseOptions{Alpha: alpha, RRFConstant: 60})
		assert.NoError(t, err, "alpha %v", alpha)
	}
}

// =============================================================================
// Degenerate inputs
// =============================================================================

func TestFuse_EmptyInputs(t *testing.T) {
	engine := NewFusionEngine(testCategories)

	fused, err := engine.Fuse(nil, []RankedHit{}, defaultFuseOptions())
	require.NoError(t, err)
	assert.NotNil(t, fused)
	assert.Empty(t, fused)
}

func TestFuse_OneEmptyListKeepsOtherOrdering(t *testing.T) {
	tests := []struct {
		name     string
		lexical  []RankedHit
		semantic []RankedHit
		weight   float64
	}{
		{"lexical only", hits("A", "B", "C"), nil, 0.3},
		{"semantic only", nil, hits("A", "B", "C"), 0.7},
	}

	engine := NewFusionEngine(testCategories)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: alpha 0.3, so lexical weight 0.3 and semantic weight 0.7
			fused, err := engine.Fuse(tt.lexical, tt.semantic, FuseOptions{Alpha: 0.3, RRFConstant: 60})
			require.NoError(t, err)

			// Then: same order, scores scaled by that list's weight only
			require.Equal(t, []string{"A", "B", "C"}, fusedIDs(fused))
			for i, f := range fused {
				assert.InDelta(t, tt.weight/float64(60+i+1), f.Score, 1e-12)
			}
		})
	}
}

func TestFuse_ZeroWeightListStillOrdersByRank(t *testing.T) {
	// Given: alpha 0 so lexical hits contribute nothing
	engine := NewFusionEngine(testCategories)

	fused, err := engine.Fuse(hits("B", "A"), nil, FuseOptions{Alpha: 0, RRFConstant: 60})
	require.NoError(t, err)

	// Then: zero scores, ties broken by lexical rank
	assert.Equal(t, []string{"B", "A"}, fusedIDs(fused))
	assert.Zero(t, fused[0].Score)
}

func TestFuse_DuplicateIDCountsFirstOccurrence(t *testing.T) {
	engine := NewFusionEngine(testCategories)

	fused, err := engine.Fuse(hits("A", "B", "A"), nil, FuseOptions{Alpha: 1, RRFConstant: 60})
	require.NoError(t, err)

	require.Equal(t, []string{"A", "B"}, fusedIDs(fused))
	assert.InDelta(t, 1.0/61, fused[0].Score, 1e-12)
	assert.Equal(t, 1, fused[0].LexicalRank)
}

// =============================================================================
// Ordering
// =============================================================================

func TestFuse_TieBreaksOnLexicalRank(t *testing.T) {
	// Given: A and D get identical scores from mirrored positions
	engine := NewFusionEngine(testCategories)

	fused, err := engine.Fuse(hits("A", "D"), hits("D", "A"), defaultFuseOptions())
	require.NoError(t, err)

	// Then: the better lexical rank wins
	require.Equal(t, fused[0].Score, fused[1].Score)
	assert.Equal(t, []string{"A", "D"}, fusedIDs(fused))
}

func TestFuse_TieBreaksPresentRankBeforeAbsent(t *testing.T) {
	// Given: X only lexical at rank 0, Y only semantic at rank 0, equal weights
	engine := NewFusionEngine(testCategories)

	fused, err := engine.Fuse(hits("Y"), hits("X"), defaultFuseOptions())
	require.NoError(t, err)

	// Then: Y has a lexical rank and X does not, so Y first despite id order
	assert.Equal(t, []string{"Y", "X"}, fusedIDs(fused))
}

func TestFusionLess_IDIsLastResort(t *testing.T) {
	a := &fusionEntry{id: "a", score: 1, lexRank: -1, semRank: 0}
	b := &fusionEntry{id: "b", score: 1, lexRank: -1, semRank: 0}
	assert.True(t, fusionLess(a, b))
	assert.False(t, fusionLess(b, a))
}

func TestFuse_Deterministic(t *testing.T) {
	engine := NewFusionEngine(testCategories)
	lexical := hits("d5", "d1", "d9", "d3", "d7", "d2")
	semantic := hits("d2", "d3", "d8", "d5", "d4", "d6")

	first, err := engine.Fuse(lexical, semantic, defaultFuseOptions())
	require.NoError(t, err)

	for range 20 {
		again, err := engine.Fuse(lexical, semantic, defaultFuseOptions())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFuse_ConservesUnionOfIDs(t *testing.T) {
	engine := NewFusionEngine(testCategories)

	fused, err := engine.Fuse(hits("a", "b", "c"), hits("c", "d", "e"), defaultFuseOptions())
	require.NoError(t, err)

	got := fusedIDs(fused)
	sort.Strings(got)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
}

func TestFuse_AlphaIsMonotonic(t *testing.T) {
	// Given: L leads the lexical list only, S leads the semantic list only
	engine := NewFusionEngine(testCategories)
	lexical, semantic := hits("L"), hits("S")

	var prevL, prevS float64 = -1, 2
	for _, alpha := range []float64{0, 0.25, 0.5, 0.75, 1} {
		fused, err := engine.Fuse(lexical, semantic, FuseOptions{Alpha: alpha, RRFConstant: 60})
		require.NoError(t, err)

		scores := map[string]float64{}
		for _, f := range fused {
			scores[f.DocID] = f.Score
		}

		// Then: raising alpha never lowers L nor raises S
		assert.GreaterOrEqual(t, scores["L"], prevL)
		assert.LessOrEqual(t, scores["S"], prevS)
		prevL, prevS = scores["L"], scores["S"]
	}
}

// =============================================================================
// Category filter and limit
// =============================================================================

func TestFuse_CategoryFilter(t *testing.T) {
	snapshot := map[string]string{
		"s1": "sci.space", "s2": "sci.space",
		"a1": "rec.autos",
	}

	tests := []struct {
		name   string
		filter string
		want   []string
	}{
		{"keeps matching ids in order", "sci.space", []string{"s1", "s2"}},
		{"other category", "rec.autos", []string{"a1"}},
		{"known category with no hits", "rec.sport.hockey", []string{}},
		{"unknown category yields empty", "comp.graphics", []string{}},
	}

	engine := NewFusionEngine(testCategories)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultFuseOptions()
			opts.CategoryFilter = tt.filter
			opts.Snapshot = snapshot

			fused, err := engine.Fuse(hits("s1", "a1", "ghost"), hits("s2", "s1"), opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fusedIDs(fused))

			for _, f := range fused {
				assert.Equal(t, tt.filter, snapshot[f.DocID])
			}
		})
	}
}

func TestFuse_Limit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"truncates", 2, 2},
		{"zero keeps all", 0, 4},
		{"negative keeps all", -1, 4},
		{"larger than input", 10, 4},
	}

	engine := NewFusionEngine(testCategories)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultFuseOptions()
			opts.Limit = tt.limit
			fused, err := engine.Fuse(hits("a", "b"), hits("c", "d"), opts)
			require.NoError(t, err)
			assert.Len(t, fused, tt.want)
		})
	}
}

func TestFuse_LimitAppliesAfterFilter(t *testing.T) {
	engine := NewFusionEngine(testCategories)
	opts := defaultFuseOptions()
	opts.CategoryFilter = "rec.autos"
	opts.Snapshot = map[string]string{"a": "sci.space", "b": "rec.autos", "c": "rec.autos", "d": "rec.autos"}
	opts.Limit = 2

	fused, err := engine.Fuse(hits("a", "b", "c", "d"), nil, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, fusedIDs(fused))
}
