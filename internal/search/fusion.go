package search

import (
	"fmt"
	"math"
	"sort"

	"github.com/Aman-CERP/topicsearch/internal/corpus"
	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
)

// FuseOptions configures one fusion call.
type FuseOptions struct {
	// Alpha weights the lexical list; the semantic list gets 1-Alpha.
	Alpha float64

	// RRFConstant is the smoothing constant k (>= 0).
	RRFConstant int

	// CategoryFilter keeps only ids whose snapshot category matches.
	// A category outside the engine's set yields an empty result.
	CategoryFilter string

	// Snapshot maps ids to categories for this call. Only consulted when
	// CategoryFilter is set.
	Snapshot map[string]string

	// Limit truncates the result; <= 0 keeps everything.
	Limit int
}

// FusionEngine merges two rankings with weighted Reciprocal Rank Fusion:
//
//	score(d) = alpha/(k + rank_lex(d) + 1) + (1-alpha)/(k + rank_sem(d) + 1)
//
// with 0-based ranks. A list that does not contain d contributes nothing.
type FusionEngine struct {
	categories corpus.CategorySet
}

// NewFusionEngine creates an engine for the given category set.
func NewFusionEngine(categories corpus.CategorySet) *FusionEngine {
	return &FusionEngine{categories: categories}
}

// fusionEntry holds per-id state; ranks are 0-based, -1 when absent.
type fusionEntry struct {
	id      string
	score   float64
	lexRank int
	semRank int
}

// Fuse combines lexical and semantic rankings. Nil or empty lists are valid.
// Only the first occurrence of an id within a list counts.
//
// Results are sorted by score (desc), then lexical rank, then semantic rank
// (a present rank beats an absent one), then id.
func (f *FusionEngine) Fuse(lexical, semantic []RankedHit, opts FuseOptions) ([]FusedHit, error) {
	if math.IsNaN(opts.Alpha) || opts.Alpha < 0 || opts.Alpha > 1 {
		return nil, serrors.ConfigError(fmt.Sprintf("alpha must be within [0,1], got %v", opts.Alpha), nil).
			WithDetail("alpha", fmt.Sprint(opts.Alpha))
	}
	if opts.RRFConstant < 0 {
		return nil, serrors.ConfigError(fmt.Sprintf("rrf constant must be >= 0, got %d", opts.RRFConstant), nil).
			WithDetail("rrf_constant", fmt.Sprint(opts.RRFConstant))
	}
	if opts.CategoryFilter != "" && !f.categories.Contains(opts.CategoryFilter) {
		return []FusedHit{}, nil
	}

	k := float64(opts.RRFConstant)
	entries := make(map[string]*fusionEntry, len(lexical)+len(semantic))
	get := func(id string) *fusionEntry {
		e, ok := entries[id]
		if !ok {
			e = &fusionEntry{id: id, lexRank: -1, semRank: -1}
			entries[id] = e
		}
		return e
	}

	for rank, hit := range lexical {
		e := get(hit.DocID)
		if e.lexRank >= 0 {
			continue
		}
		e.lexRank = rank
		e.score += opts.Alpha / (k + float64(rank) + 1)
	}
	for rank, hit := range semantic {
		e := get(hit.DocID)
		if e.semRank >= 0 {
			continue
		}
		e.semRank = rank
		e.score += (1 - opts.Alpha) / (k + float64(rank) + 1)
	}

	sorted := make([]*fusionEntry, 0, len(entries))
	for _, e := range entries {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return fusionLess(sorted[i], sorted[j])
	})

	out := make([]FusedHit, 0, len(sorted))
	for _, e := range sorted {
		if opts.CategoryFilter != "" && opts.Snapshot[e.id] != opts.CategoryFilter {
			continue
		}
		out = append(out, FusedHit{
			DocID:        e.id,
			Score:        e.score,
			LexicalRank:  e.lexRank + 1,
			SemanticRank: e.semRank + 1,
		})
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// fusionLess reports whether a ranks before b.
func fusionLess(a, b *fusionEntry) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if c := compareRank(a.lexRank, b.lexRank); c != 0 {
		return c < 0
	}
	if c := compareRank(a.semRank, b.semRank); c != 0 {
		return c < 0
	}
	return a.id < b.id
}

// compareRank orders 0-based ranks ascending with -1 (absent) last.
func compareRank(a, b int) int {
	switch {
	case a == b:
		return 0
	case a < 0:
		return 1
	case b < 0:
		return -1
	case a < b:
		return -1
	default:
		return 1
	}
}
