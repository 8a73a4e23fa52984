// Package cmd provides the CLI commands for topicsearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/topicsearch/internal/config"
	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/internal/logging"
	"github.com/Aman-CERP/topicsearch/internal/profiling"
	"github.com/Aman-CERP/topicsearch/pkg/version"
)

// Persistent flags
var (
	debugMode      bool
	configDir      string
	loggingCleanup func()
)

// Profiling flags
var (
	profileOpts profiling.Options
	profiler    *profiling.Session
)

// NewRootCmd creates the root command for the topicsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topicsearch",
		Short: "Classification-gated hybrid search over a topical corpus",
		Long: `topicsearch answers natural-language queries over a labelled corpus by
fusing a BM25 keyword ranking with an embedding similarity ranking using
weighted Reciprocal Rank Fusion.

A query classifier predicts the query's topic; when it is confident the
results are restricted to that category.

Build an index with 'topicsearch index', then query it with
'topicsearch search'.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetVersionTemplate("topicsearch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr and ~/.topicsearch/logs/")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory holding .topicsearch.yaml")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCategoriesCmd())
	cmd.AddCommand(newEvalCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfilingAndLogging(cmd *cobra.Command, args []string) error {
	if err := startLogging(cmd, args); err != nil {
		return err
	}
	if profileOpts.Enabled() {
		s, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profiler = s
	}
	return nil
}

func stopProfilingAndLogging(cmd *cobra.Command, args []string) error {
	var err error
	if profiler != nil {
		err = profiler.Stop()
		profiler = nil
	}
	_ = stopLogging(cmd, args)
	return err
}

// startLogging configures the default slog logger from the loaded config.
// A config that fails to load still gets default logging; the command
// itself reports the error.
func startLogging(cmd *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.Stderr = nil

	if cfg, err := config.Load(configDir); err == nil {
		logCfg.Level = cfg.Logging.Level
		logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
		logCfg.MaxFiles = cfg.Logging.MaxFiles
		if !cfg.Logging.File {
			logCfg.FilePath = ""
		}
	}
	if debugMode {
		logCfg.Level = "debug"
		logCfg.FilePath = logging.DefaultLogPath()
		logCfg.Stderr = cmd.ErrOrStderr()
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	if debugMode {
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
	}
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and prints a formatted error on failure.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, serrors.FormatForUser(err, debugMode))
	}
	return err
}

// loadConfig loads the layered configuration for --config-dir and anchors
// relative data paths to it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, serrors.ConfigError("failed to load configuration", err).
			WithSuggestion("Check .topicsearch.yaml or run 'topicsearch config show'")
	}
	cfg.Index.DataDir = resolvePath(cfg.Index.DataDir)
	return cfg, nil
}

// resolvePath anchors a config-relative path to --config-dir.
func resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(configDir, p)
}
