package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/internal/eval"
	"github.com/Aman-CERP/topicsearch/internal/output"
	"github.com/Aman-CERP/topicsearch/pkg/searcher"
)

type evalOptions struct {
	suitePath  string
	workers    int
	k          int
	noClassify bool
	format     string
	baseline   string
	threshold  float64
}

func newEvalCmd() *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score the search pipeline against a labelled query suite",
		Long: `Run every query of a YAML suite through the search pipeline and report
precision@k, recall@k, NDCG@k and reciprocal rank per query, their means,
and classification accuracy for queries that name an expected category.

Suite format:
  queries:
    - id: space-1
      query: "shuttle launch delayed"
      relevant: [doc_12, doc_98]
      category: sci.space
      k: 5

With --baseline, the means are compared against a report saved with
--format json and the command fails when any of them drops by more than
--threshold.

Examples:
  topicsearch eval --suite eval.yaml
  topicsearch eval --workers 8 --k 20 --format json > baseline.json
  topicsearch eval --baseline baseline.json --threshold 0.01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEval(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.suitePath, "suite", "s", "", "Evaluation suite file (default: eval.suite_file)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Concurrent queries (default: eval.workers)")
	cmd.Flags().IntVarP(&opts.k, "k", "k", 0, "Cutoff for queries without their own k (default: eval.k)")
	cmd.Flags().BoolVar(&opts.noClassify, "no-classify", false, "Do not classify queries")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringVar(&opts.baseline, "baseline", "", "Compare against a previous JSON report")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", eval.DefaultRegressionThreshold, "Largest tolerated drop of a mean metric")

	return cmd
}

func runEval(ctx context.Context, cmd *cobra.Command, opts evalOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return serrors.ValidationError(fmt.Sprintf("unknown format %q (valid options: text, json)", opts.format), nil)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	suitePath := opts.suitePath
	if suitePath == "" {
		suitePath = resolvePath(cfg.Eval.SuiteFile)
	}
	suite, err := eval.LoadSuite(suitePath)
	if err != nil {
		return err
	}

	var baseline *eval.Report
	if opts.baseline != "" {
		if baseline, err = eval.LoadReport(opts.baseline); err != nil {
			return err
		}
	}

	workers := cfg.Eval.Workers
	if opts.workers > 0 {
		workers = opts.workers
	}
	k := cfg.Eval.K
	if opts.k > 0 {
		k = opts.k
	}

	engine, err := searcher.Open(ctx, cfg, searcher.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	harness := eval.NewHarness(engine,
		eval.WithWorkers(workers),
		eval.WithK(k),
		eval.WithClassification(!opts.noClassify && engine.HasClassifier()),
		eval.WithHarnessLogger(slog.Default()))

	report, err := harness.Run(ctx, suite)
	if err != nil {
		return err
	}

	var comparison *eval.Comparison
	if baseline != nil {
		comparison = eval.Compare(report, baseline, opts.threshold)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		out := output.New(cmd.OutOrStdout())
		printEvalReport(out, report)
		if comparison != nil {
			printComparison(out, comparison)
		}
	}

	if comparison != nil && comparison.Regressed {
		return fmt.Errorf("evaluation regressed against %s", opts.baseline)
	}
	return nil
}

func printComparison(out *output.Writer, c *eval.Comparison) {
	out.Newline()
	out.Header("Baseline comparison")
	rows := [][]string{{"METRIC", "BASELINE", "CURRENT", "DELTA", "STATUS"}}
	for _, m := range c.Metrics {
		rows = append(rows, []string{
			m.Metric,
			fmt.Sprintf("%.4f", m.Baseline),
			fmt.Sprintf("%.4f", m.Current),
			fmt.Sprintf("%+.4f", m.Delta),
			m.Status,
		})
	}
	out.Table(rows)

	for _, d := range c.Worse {
		out.Warningf("%s: reciprocal rank %.2f -> %.2f", d.ID, d.Baseline, d.Current)
	}
	if len(c.NewCases) > 0 || len(c.MissingCase) > 0 {
		out.Dim(fmt.Sprintf("%d new, %d missing queries", len(c.NewCases), len(c.MissingCase)))
	}
}

func printEvalReport(out *output.Writer, report *eval.Report) {
	rows := [][]string{{"ID", "K", "P@K", "R@K", "NDCG", "RR", "PREDICTED"}}
	for _, c := range report.Cases {
		if c.Failed() {
			rows = append(rows, []string{c.ID, fmt.Sprint(c.K), "-", "-", "-", "-", "error: " + c.Err})
			continue
		}
		rows = append(rows, []string{
			c.ID,
			fmt.Sprint(c.K),
			fmt.Sprintf("%.2f", c.Precision),
			fmt.Sprintf("%.2f", c.Recall),
			fmt.Sprintf("%.2f", c.NDCG),
			fmt.Sprintf("%.2f", c.ReciprocalRank),
			predictedLabel(c),
		})
	}
	out.Table(rows)
	out.Newline()

	out.Header("Summary")
	out.KeyValue("Queries", 14, fmt.Sprintf("%d ok, %d failed", report.Succeeded, report.Failed))
	out.KeyValue("Precision@k", 14, fmt.Sprintf("%.4f", report.MeanPrecision))
	out.KeyValue("Recall@k", 14, fmt.Sprintf("%.4f", report.MeanRecall))
	out.KeyValue("NDCG@k", 14, fmt.Sprintf("%.4f", report.MeanNDCG))
	out.KeyValue("MRR", 14, fmt.Sprintf("%.4f", report.MRR))
	if acc, ok := report.ClassificationAccuracy(); ok {
		out.KeyValue("Classification", 14, fmt.Sprintf("%.2f%% (%d/%d)",
			acc*100, report.ClassifiedCorrect, report.Classified))
	}
	out.KeyValue("Took", 14, report.Took.Round(time.Millisecond).String())

	if report.Failed > 0 {
		out.Warningf("%d queries failed and were left out of the means", report.Failed)
	}
}

func predictedLabel(c eval.CaseResult) string {
	switch {
	case c.ExpectedCategory == "":
		return c.PredictedCategory
	case c.PredictedCategory == c.ExpectedCategory:
		return c.PredictedCategory + " ✓"
	default:
		return fmt.Sprintf("%s (want %s)", c.PredictedCategory, c.ExpectedCategory)
	}
}
