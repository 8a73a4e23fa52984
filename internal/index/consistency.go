package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Aman-CERP/topicsearch/internal/corpus"
	"github.com/Aman-CERP/topicsearch/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphanBM25 indicates a keyword entry with no corpus document.
	InconsistencyOrphanBM25 InconsistencyType = iota
	// InconsistencyOrphanVector indicates a vector with no corpus document.
	InconsistencyOrphanVector
	// InconsistencyMissingBM25 indicates a corpus document absent from the keyword index.
	InconsistencyMissingBM25
	// InconsistencyMissingVector indicates a corpus document absent from the vector store.
	InconsistencyMissingVector
)

// String returns the snake_case name of the type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanBM25:
		return "orphan_bm25"
	case InconsistencyOrphanVector:
		return "orphan_vector"
	case InconsistencyMissingBM25:
		return "missing_bm25"
	case InconsistencyMissingVector:
		return "missing_vector"
	default:
		return "unknown"
	}
}

// Inconsistency is one cross-store disagreement.
type Inconsistency struct {
	Type  InconsistencyType
	DocID string
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of corpus documents verified.
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Consistent reports whether no issue was found.
func (r *CheckResult) Consistent() bool { return len(r.Inconsistencies) == 0 }

// Count returns how many issues of type t were found.
func (r *CheckResult) Count(t InconsistencyType) int {
	n := 0
	for _, i := range r.Inconsistencies {
		if i.Type == t {
			n++
		}
	}
	return n
}

// DocumentSource lists the documents of record. *corpus.Store satisfies it.
type DocumentSource interface {
	Documents() []*corpus.Document
	Len() int
}

// ConsistencyChecker compares the document ids known to the corpus with the
// ids held by the keyword index and the vector store. An id missing from
// the corpus surfaces at query time as a consistency fault.
type ConsistencyChecker struct {
	docs   DocumentSource
	bm25   store.BM25Index
	vector store.VectorStore
}

// NewConsistencyChecker creates a checker over the three stores.
func NewConsistencyChecker(docs DocumentSource, bm25 store.BM25Index, vector store.VectorStore) *ConsistencyChecker {
	return &ConsistencyChecker{docs: docs, bm25: bm25, vector: vector}
}

// Check lists every disagreement, orphans first, each group sorted by id.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	docIDs := make(map[string]bool, c.docs.Len())
	for _, d := range c.docs.Documents() {
		docIDs[d.ID] = true
	}

	bm25IDs, err := c.bm25.AllIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to list keyword index ids: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectorIDs := c.vector.AllIDs()

	var issues []Inconsistency
	issues = append(issues, diff(bm25IDs, docIDs, InconsistencyOrphanBM25)...)
	issues = append(issues, diff(vectorIDs, docIDs, InconsistencyOrphanVector)...)

	corpusIDs := make([]string, 0, len(docIDs))
	for id := range docIDs {
		corpusIDs = append(corpusIDs, id)
	}
	issues = append(issues, diff(corpusIDs, toSet(bm25IDs), InconsistencyMissingBM25)...)
	issues = append(issues, diff(corpusIDs, toSet(vectorIDs), InconsistencyMissingVector)...)

	return &CheckResult{
		Checked:         len(docIDs),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair deletes orphans from the keyword index and vector store. Missing
// entries need a rebuild and are only logged.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) error {
	var orphanBM25, orphanVector []string
	missing := 0
	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanBM25:
			orphanBM25 = append(orphanBM25, issue.DocID)
		case InconsistencyOrphanVector:
			orphanVector = append(orphanVector, issue.DocID)
		case InconsistencyMissingBM25, InconsistencyMissingVector:
			missing++
		}
	}

	if len(orphanBM25) > 0 {
		if err := c.bm25.Delete(ctx, orphanBM25); err != nil {
			return fmt.Errorf("failed to delete orphan keyword entries: %w", err)
		}
		slog.Info("deleted orphan keyword entries", slog.Int("count", len(orphanBM25)))
	}
	if len(orphanVector) > 0 {
		if err := c.vector.Delete(ctx, orphanVector); err != nil {
			return fmt.Errorf("failed to delete orphan vectors: %w", err)
		}
		slog.Info("deleted orphan vectors", slog.Int("count", len(orphanVector)))
	}
	if missing > 0 {
		slog.Warn("index has missing entries, run 'topicsearch index' to rebuild",
			slog.Int("missing_count", missing))
	}
	return nil
}

// QuickCheck compares counts only.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	docCount := c.docs.Len()
	bm25Count := 0
	if stats := c.bm25.Stats(); stats != nil {
		bm25Count = stats.DocumentCount
	}
	vectorCount := c.vector.Count()

	consistent := docCount == bm25Count && docCount == vectorCount
	if !consistent {
		slog.Debug("index counts mismatch",
			slog.Int("corpus", docCount),
			slog.Int("bm25", bm25Count),
			slog.Int("vector", vectorCount))
	}
	return consistent, nil
}

// diff returns the ids not present in known, sorted, as issues of type t.
func diff(ids []string, known map[string]bool, t InconsistencyType) []Inconsistency {
	var missing []string
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	slices.Sort(missing)
	out := make([]Inconsistency, len(missing))
	for i, id := range missing {
		out[i] = Inconsistency{Type: t, DocID: id}
	}
	return out
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
