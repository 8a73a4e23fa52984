package eval

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultRegressionThreshold is the largest tolerated drop of a mean metric,
// in absolute score units.
const DefaultRegressionThreshold = 0.02

// MetricDelta compares one mean metric across two reports.
type MetricDelta struct {
	Metric   string  `json:"metric"`
	Current  float64 `json:"current"`
	Baseline float64 `json:"baseline"`
	Delta    float64 `json:"delta"`
	Status   string  `json:"status"` // OK, REGRESSION or IMPROVED
}

// CaseDelta reports a query whose reciprocal rank changed.
type CaseDelta struct {
	ID       string  `json:"id"`
	Current  float64 `json:"current_rr"`
	Baseline float64 `json:"baseline_rr"`
}

// Comparison is the result of Compare.
type Comparison struct {
	Threshold   float64       `json:"threshold"`
	Metrics     []MetricDelta `json:"metrics"`
	Worse       []CaseDelta   `json:"worse,omitempty"`
	Better      []CaseDelta   `json:"better,omitempty"`
	NewCases    []string      `json:"new_cases,omitempty"`
	MissingCase []string      `json:"missing_cases,omitempty"`
	Regressed   bool          `json:"regressed"`
}

// Compare checks the current report's means against a baseline. A metric
// regresses when it drops by more than threshold.
func Compare(current, baseline *Report, threshold float64) *Comparison {
	c := &Comparison{Threshold: threshold}

	means := []struct {
		name      string
		cur, base float64
	}{
		{"precision", current.MeanPrecision, baseline.MeanPrecision},
		{"recall", current.MeanRecall, baseline.MeanRecall},
		{"ndcg", current.MeanNDCG, baseline.MeanNDCG},
		{"mrr", current.MRR, baseline.MRR},
	}
	curAcc, curOK := current.ClassificationAccuracy()
	baseAcc, baseOK := baseline.ClassificationAccuracy()
	if curOK && baseOK {
		means = append(means, struct {
			name      string
			cur, base float64
		}{"classification_accuracy", curAcc, baseAcc})
	}

	for _, m := range means {
		d := MetricDelta{Metric: m.name, Current: m.cur, Baseline: m.base, Delta: m.cur - m.base}
		switch {
		case d.Delta < -threshold:
			d.Status = "REGRESSION"
			c.Regressed = true
		case d.Delta > threshold:
			d.Status = "IMPROVED"
		default:
			d.Status = "OK"
		}
		c.Metrics = append(c.Metrics, d)
	}

	base := make(map[string]CaseResult, len(baseline.Cases))
	for _, r := range baseline.Cases {
		base[r.ID] = r
	}
	seen := make(map[string]struct{}, len(current.Cases))
	for _, r := range current.Cases {
		seen[r.ID] = struct{}{}
		b, ok := base[r.ID]
		if !ok {
			c.NewCases = append(c.NewCases, r.ID)
			continue
		}
		if r.Failed() || b.Failed() {
			continue
		}
		delta := CaseDelta{ID: r.ID, Current: r.ReciprocalRank, Baseline: b.ReciprocalRank}
		switch {
		case r.ReciprocalRank < b.ReciprocalRank:
			c.Worse = append(c.Worse, delta)
		case r.ReciprocalRank > b.ReciprocalRank:
			c.Better = append(c.Better, delta)
		}
	}
	for _, r := range baseline.Cases {
		if _, ok := seen[r.ID]; !ok {
			c.MissingCase = append(c.MissingCase, r.ID)
		}
	}
	return c
}

// LoadReport reads a report written by 'topicsearch eval --format json'.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
