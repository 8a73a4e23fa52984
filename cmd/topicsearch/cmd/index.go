package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/topicsearch/internal/config"
	"github.com/Aman-CERP/topicsearch/internal/corpus"
	"github.com/Aman-CERP/topicsearch/internal/embed"
	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/internal/index"
	"github.com/Aman-CERP/topicsearch/internal/output"
	"github.com/Aman-CERP/topicsearch/pkg/searcher"
)

type indexOptions struct {
	corpusPath string
	check      bool
	repair     bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the search indexes from a JSONL corpus",
		Long: `Build the keyword index, the vector index and the document store from a
JSONL corpus with one {"id","title","content","category"} object per line.

Documents whose category is not in corpus.categories are skipped.
The previous index stays in place until the new one is complete.

--repair skips the build. It checks the existing index and deletes keyword
entries and vectors whose document is no longer in the document store.

Examples:
  topicsearch index --corpus data/newsgroups.jsonl
  topicsearch index --check
  topicsearch index --repair`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.corpusPath, "corpus", "c", "", "JSONL corpus file (default: corpus.path)")
	cmd.Flags().BoolVar(&opts.check, "check", false, "Verify store consistency after building")
	cmd.Flags().BoolVar(&opts.repair, "repair", false, "Remove orphan entries from the existing index instead of building")
	cmd.MarkFlagsMutuallyExclusive("repair", "check")
	cmd.MarkFlagsMutuallyExclusive("repair", "corpus")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if opts.repair {
		return runCheck(ctx, out, cfg, true)
	}

	corpusPath := opts.corpusPath
	if corpusPath == "" {
		corpusPath = resolvePath(cfg.Corpus.Path)
	}

	categories, err := corpus.NewCategorySet(cfg.Corpus.Categories)
	if err != nil {
		return serrors.ConfigError("invalid corpus.categories", err)
	}

	docs, stats, err := corpus.LoadJSONL(corpusPath, categories)
	if err != nil {
		return err
	}
	out.Statusf("📄", "Loaded %d documents from %s", stats.Loaded, corpusPath)
	if stats.Skipped() > 0 {
		out.Warningf("Skipped %d documents (%d unknown category, %d empty)",
			stats.Skipped(), stats.UnknownCategory, stats.Empty)
	}

	embedder, err := embed.NewFromConfig(ctx, cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	builder, err := index.NewBuilder(index.BuilderDependencies{
		Config:   cfg,
		Embedder: embedder,
		Logger:   slog.Default(),
		Progress: func(ev index.ProgressEvent) {
			out.Progress(ev.Current, ev.Total, string(ev.Stage))
		},
	})
	if err != nil {
		return err
	}

	result, err := builder.Build(ctx, docs, categories)
	if err != nil {
		return err
	}

	printBuildSummary(out, result)

	if opts.check {
		return runCheck(ctx, out, cfg, false)
	}
	return nil
}

func printBuildSummary(out *output.Writer, result *index.BuildResult) {
	m := result.Manifest
	out.Newline()
	out.Successf("Indexed %d documents in %s", m.Documents, result.Duration.Round(time.Millisecond))
	out.KeyValue("Embedder", 10, fmt.Sprintf("%s (%d dims)", m.EmbedderModel, m.Dimensions))
	out.KeyValue("Keyword", 10, m.LexicalBackend)
	out.KeyValue("Embedding", 10, result.EmbedDuration.Round(time.Millisecond).String())
	if result.Precomputed > 0 {
		out.KeyValue("Reused", 10, fmt.Sprintf("%d precomputed embeddings", result.Precomputed))
	}
	out.KeyValue("Indexing", 10, result.IndexDuration.Round(time.Millisecond).String())
	out.Newline()

	rows := [][]string{{"CATEGORY", "DOCUMENTS"}}
	for _, s := range result.Stats {
		if s.Count == 0 {
			continue
		}
		rows = append(rows, []string{s.Category, strconv.Itoa(s.Count)})
	}
	out.Table(rows)
}

// runCheck opens the index and compares the three stores. With repair set,
// orphan entries are deleted.
func runCheck(ctx context.Context, out *output.Writer, cfg *config.Config, repair bool) error {
	engine, err := searcher.Open(ctx, cfg, searcher.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	check := engine.Check
	if repair {
		check = engine.Repair
	}
	result, err := check(ctx)
	if err != nil {
		return err
	}

	out.Newline()
	if result.Consistent() {
		out.Successf("Consistency check passed (%d documents)", result.Checked)
		return nil
	}

	out.Warningf("Found %d inconsistencies", len(result.Inconsistencies))
	rows := [][]string{{"TYPE", "DOCUMENT"}}
	for _, inc := range result.Inconsistencies {
		rows = append(rows, []string{inc.Type.String(), inc.DocID})
	}
	out.Table(rows)

	if !repair {
		return fmt.Errorf("index is inconsistent: %d problems", len(result.Inconsistencies))
	}
	orphans := result.Count(index.InconsistencyOrphanBM25) + result.Count(index.InconsistencyOrphanVector)
	out.Successf("Removed %d orphan entries", orphans)
	if missing := len(result.Inconsistencies) - orphans; missing > 0 {
		return serrors.New(serrors.ErrCodeIndexFailed,
			fmt.Sprintf("index is missing %d entries", missing), nil).
			WithSuggestion("Run 'topicsearch index' to rebuild")
	}
	return nil
}
