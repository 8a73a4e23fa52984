package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/topicsearch/internal/corpus"
	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/internal/output"
	"github.com/Aman-CERP/topicsearch/internal/telemetry"
	"github.com/Aman-CERP/topicsearch/pkg/searcher"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	category   string
	noClassify bool
	topK       int
	alpha      float64
	format     string // "text", "json"
	metrics    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed corpus",
		Long: `Search the indexed corpus using hybrid search.

Combines BM25 (keyword) and semantic (embedding) rankings with weighted
Reciprocal Rank Fusion. Unless --no-classify is given, a confident query
classifier restricts results to the predicted category.

Examples:
  topicsearch search "space shuttle launch"
  topicsearch search "engine oil" --category rec.autos --top-k 5
  topicsearch search "goalie save" --alpha 0.8 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVar(&opts.category, "category", "", "Restrict results to this category (skips classification)")
	cmd.Flags().BoolVar(&opts.noClassify, "no-classify", false, "Do not classify the query")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Maximum number of results (default: search.default_top_k)")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", 0, "Lexical weight in [0,1] (default: search.alpha)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print Prometheus metrics after the results")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return serrors.ValidationError(fmt.Sprintf("unknown format %q (valid options: text, json)", opts.format), nil)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	recorder := telemetry.NewPrometheusRecorder()
	engine, err := searcher.Open(ctx, cfg,
		searcher.WithLogger(slog.Default()),
		searcher.WithRecorder(recorder))
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	if opts.category != "" && !engine.CategorySet().Contains(opts.category) {
		return serrors.UnknownCategoryError(opts.category)
	}

	req := searcher.Request{
		Query:                  query,
		CategoryFilter:         opts.category,
		UseQueryClassification: !opts.noClassify,
		TopK:                   opts.topK,
	}
	if req.TopK == 0 {
		req.TopK = cfg.Search.DefaultTopK
	}
	if cmd.Flags().Changed("alpha") {
		alpha := opts.alpha
		req.Alpha = &alpha
	}

	slog.Info("search_started", slog.String("query", query), slog.Int("top_k", req.TopK))
	resp, err := engine.Search(ctx, req)
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.Int("results", resp.TotalResults), slog.Bool("degraded", resp.Degraded))

	switch opts.format {
	case "json":
		err = formatJSON(cmd, resp)
	default:
		err = formatText(output.New(cmd.OutOrStdout()), resp)
	}
	if err != nil {
		return err
	}

	if opts.metrics {
		return recorder.WriteText(cmd.OutOrStdout())
	}
	return nil
}

// formatText outputs results in human-readable format.
func formatText(out *output.Writer, resp *searcher.Response) error {
	if resp.Classification != nil {
		out.Dim(fmt.Sprintf("Classified as %s (confidence %.2f)",
			resp.Classification.Category, resp.Classification.Confidence))
	}
	if resp.CategoryFilter != "" {
		out.Dim("Filtered to " + resp.CategoryFilter)
	}
	if resp.Degraded {
		out.Warningf("Partial results: %s unavailable", strings.Join(resp.DegradedSources, ", "))
	}

	if len(resp.Results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", resp.Query))
		return nil
	}

	out.Statusf("🔍", "Found %d results for %q in %s:", resp.TotalResults, resp.Query, resp.Took.Round(time.Millisecond))
	out.Newline()

	for _, r := range resp.Results {
		doc := r.Document
		out.Statusf("", "%d. %s [%s] (score: %.4f)", r.Rank, doc.Title, doc.Category, r.Score)
		out.Dim(fmt.Sprintf("      id: %s | BM25 rank: %s | vector rank: %s",
			doc.ID, rankLabel(r.LexicalRank), rankLabel(r.SemanticRank)))

		for _, line := range getSnippet(doc.Content, 3) {
			out.Status("", "   "+line)
		}
		out.Newline()
	}
	return nil
}

func rankLabel(rank int) string {
	if rank == 0 {
		return "-"
	}
	return fmt.Sprint(rank)
}

// jsonResponse is the --format json shape.
type jsonResponse struct {
	Query           string                   `json:"query"`
	Classification  *searcher.Classification `json:"classification,omitempty"`
	CategoryFilter  string                   `json:"category_filter,omitempty"`
	Results         []jsonResult             `json:"results"`
	TotalResults    int                      `json:"total_results"`
	Degraded        bool                     `json:"degraded"`
	DegradedSources []string                 `json:"degraded_sources,omitempty"`
	TookMS          int64                    `json:"took_ms"`
}

type jsonResult struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Category     string  `json:"category"`
	Score        float64 `json:"score"`
	Rank         int     `json:"rank"`
	LexicalRank  int     `json:"lexical_rank,omitempty"`
	SemanticRank int     `json:"semantic_rank,omitempty"`
	Content      string  `json:"content"`
}

// formatJSON outputs results in JSON format.
func formatJSON(cmd *cobra.Command, resp *searcher.Response) error {
	body := jsonResponse{
		Query:           resp.Query,
		Classification:  resp.Classification,
		CategoryFilter:  resp.CategoryFilter,
		Results:         make([]jsonResult, 0, len(resp.Results)),
		TotalResults:    resp.TotalResults,
		Degraded:        resp.Degraded,
		DegradedSources: resp.DegradedSources,
		TookMS:          resp.Took.Milliseconds(),
	}
	for _, r := range resp.Results {
		body.Results = append(body.Results, jsonResult{
			ID:           r.Document.ID,
			Title:        r.Document.Title,
			Category:     r.Document.Category,
			Score:        r.Score,
			Rank:         r.Rank,
			LexicalRank:  r.LexicalRank,
			SemanticRank: r.SemanticRank,
			Content:      r.Document.Content,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}

// getSnippet returns the first n non-empty lines of content.
func getSnippet(content string, n int) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if short := corpus.Truncate(line, 97); short != line {
			line = short + "..."
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return lines
}
