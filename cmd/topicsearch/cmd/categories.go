package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/topicsearch/internal/corpus"
	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/internal/index"
	"github.com/Aman-CERP/topicsearch/internal/output"
)

func newCategoriesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the indexed categories with document counts",
		Long: `List every category of the indexed corpus with the number of documents
it holds. Categories with no documents are listed with a count of zero.

Reads only the document store, so no embedding provider is needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCategories(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

type categoriesReport struct {
	EmbedderModel  string                 `json:"embedder_model"`
	Dimensions     int                    `json:"dimensions"`
	LexicalBackend string                 `json:"lexical_backend"`
	BuiltAt        time.Time              `json:"built_at"`
	Documents      int                    `json:"documents"`
	Categories     []corpus.CategoryCount `json:"categories"`
}

func runCategories(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manifest, err := index.ReadManifest(cfg.Index.DataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return serrors.New(serrors.ErrCodeConfigNotFound, "no index found in "+cfg.Index.DataDir, err).
				WithSuggestion("Run 'topicsearch index' first")
		}
		return err
	}

	repo, err := corpus.OpenSQLiteRepository(cfg.Index.IndexPath(index.CorpusFile))
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	docs, categories, err := repo.Load(ctx)
	if err != nil {
		return err
	}
	store, err := corpus.NewStore(docs, categories)
	if err != nil {
		return err
	}

	report := categoriesReport{
		EmbedderModel:  manifest.EmbedderModel,
		Dimensions:     manifest.Dimensions,
		LexicalBackend: manifest.LexicalBackend,
		BuiltAt:        manifest.BuiltAt,
		Documents:      store.Len(),
		Categories:     store.Stats(),
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	out := output.New(cmd.OutOrStdout())
	out.Header("Categories")
	out.KeyValue("Documents", 10, strconv.Itoa(report.Documents))
	out.KeyValue("Embedder", 10, report.EmbedderModel)
	out.KeyValue("Keyword", 10, report.LexicalBackend)
	out.KeyValue("Built", 10, report.BuiltAt.Local().Format(time.RFC3339))
	out.Newline()

	rows := [][]string{{"CATEGORY", "DOCUMENTS"}}
	for _, c := range report.Categories {
		rows = append(rows, []string{c.Category, strconv.Itoa(c.Count)})
	}
	out.Table(rows)
	return nil
}
