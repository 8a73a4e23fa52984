package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/topicsearch/internal/output"
	"github.com/Aman-CERP/topicsearch/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
		corpusPath string
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that topicsearch is ready to index and search",
		Long: `Run the system checks: configuration, data directory permissions and
free space, corpus file, index manifest and embedding provider.

Exits with an error when a required check fails.`,
		Example: `  topicsearch doctor
  topicsearch doctor --verbose
  topicsearch doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if corpusPath == "" {
				corpusPath = resolvePath(cfg.Corpus.Path)
			}
			checker := preflight.New(cfg,
				preflight.WithVerbose(verbose),
				preflight.WithCorpusPath(corpusPath))
			results := checker.RunAll(cmd.Context())

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{
					"status": checker.SummaryStatus(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(output.New(cmd.OutOrStdout()), results)
			}

			if checker.HasCriticalFailures(results) {
				return fmt.Errorf("system check failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "Corpus file to check (default: corpus.path)")

	return cmd
}
