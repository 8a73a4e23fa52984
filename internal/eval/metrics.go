// Package eval scores rankings against relevance judgements and runs
// query suites through the search orchestrator.
package eval

import "math"

// PrecisionAtK is the fraction of the top k retrieved ids that are relevant.
// The denominator is k even when fewer than k ids were retrieved.
// k < 1 yields 0.
func PrecisionAtK(relevant, retrieved []string, k int) float64 {
	if k < 1 {
		return 0
	}
	return float64(hitsAtK(toSet(relevant), retrieved, k)) / float64(k)
}

// RecallAtK is the fraction of relevant ids found in the top k.
// An empty relevant set or k < 1 yields 0.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	set := toSet(relevant)
	if len(set) == 0 || k < 1 {
		return 0
	}
	return float64(hitsAtK(set, retrieved, k)) / float64(len(set))
}

// NDCGAtK is the DCG of the top k with binary gains, divided by the DCG of
// the same gains sorted best first. Position i (1-based) is discounted by
// log2(i+1). Returns 0 when no relevant id is in the top k.
func NDCGAtK(relevant, retrieved []string, k int) float64 {
	if k < 1 {
		return 0
	}
	set := toSet(relevant)
	top := retrieved[:min(k, len(retrieved))]

	var dcg float64
	hits := 0
	for i, id := range top {
		if _, ok := set[id]; ok {
			dcg += 1 / math.Log2(float64(i+2))
			hits++
		}
	}

	var ideal float64
	for i := 0; i < hits; i++ {
		ideal += 1 / math.Log2(float64(i+2))
	}
	if ideal == 0 {
		return 0
	}
	return dcg / ideal
}

// MRR is the reciprocal rank of the first relevant id, 0 if there is none.
// Averaged over a query set it is the mean reciprocal rank.
func MRR(relevant, retrieved []string) float64 {
	set := toSet(relevant)
	for i, id := range retrieved {
		if _, ok := set[id]; ok {
			return 1 / float64(i+1)
		}
	}
	return 0
}

func hitsAtK(set map[string]struct{}, retrieved []string, k int) int {
	n := 0
	for _, id := range retrieved[:min(k, len(retrieved))] {
		if _, ok := set[id]; ok {
			n++
		}
	}
	return n
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
