package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/topicsearch/configs"
	"github.com/Aman-CERP/topicsearch/internal/config"
	"github.com/Aman-CERP/topicsearch/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage topicsearch configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/topicsearch/config.yaml)
  3. Project config (.topicsearch.yaml in --config-dir)
  4. Environment variables (TOPICSEARCH_*)`,
		Example: `  # Create a project config from the template
  topicsearch config init

  # Show effective configuration (merged from all sources)
  topicsearch config show

  # Print config file paths
  topicsearch config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	var user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the template",
		Long: `Create .topicsearch.yaml in --config-dir (or the user config with --user)
from a template listing every option with its default.

An existing file is only replaced with --force, after a timestamped backup.`,
		Example: `  # Create project config
  topicsearch config init

  # Replace an existing user config
  topicsearch config init --user --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := filepath.Join(configDir, config.ProjectConfigName)
			if user {
				path = config.GetUserConfigPath()
			}
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration (a backup is kept)")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the effective configuration after merging all sources, or the
values of a single source applied over the defaults.`,
		Example: `  # Show merged configuration
  topicsearch config show

  # Show as JSON
  topicsearch config show --json

  # Show only the project config
  topicsearch config show --source project`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print config file paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			out.KeyValue("User", 8, config.GetUserConfigPath())
			out.KeyValue("Project", 8, filepath.Join(configDir, config.ProjectConfigName))
			return nil
		},
	}
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Newline()
			out.Status("💡", "Use --force to replace it (a backup is kept)")
			return nil
		}
		backupPath, err := config.BackupFile(path)
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		out.Statusf("💾", "Backup: %s", backupPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Set corpus.path and corpus.categories for your data")
	out.Status("", "  2. Run 'topicsearch config show' to verify")
	out.Status("", "  3. Run 'topicsearch index' to build the index")

	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	var (
		cfg *config.Config
		err error
	)

	switch source {
	case "merged":
		cfg, err = config.Load(configDir)
	case "user":
		cfg, err = loadSingleSource(config.GetUserConfigPath())
	case "project":
		cfg, err = loadSingleSource(filepath.Join(configDir, config.ProjectConfigName))
	case "defaults":
		cfg = config.NewConfig()
	default:
		return fmt.Errorf("unknown source %q (valid options: merged, user, project, defaults)", source)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// loadSingleSource applies one file over the defaults.
func loadSingleSource(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no configuration at %s: %w", path, err)
	}
	return config.LoadFile(path)
}
