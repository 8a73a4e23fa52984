package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/topicsearch/configs"
	"github.com/Aman-CERP/topicsearch/internal/config"
)

func TestConfigInit_CreatesProjectConfig(t *testing.T) {
	// Given: an empty directory
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	dir := t.TempDir()

	// When: running config init
	output, err := runCLI(t, "config", "init", "--config-dir", dir)

	// Then: the template is written
	require.NoError(t, err)
	assert.Contains(t, output, "Created configuration")
	data, err := os.ReadFile(filepath.Join(dir, config.ProjectConfigName))
	require.NoError(t, err)
	assert.Equal(t, configs.ProjectConfigTemplate, string(data))
}

func TestConfigInit_ExistingWithoutForce(t *testing.T) {
	// Given: an existing project config
	dir := newProject(t)

	// When: running config init without --force
	output, err := runCLI(t, "config", "init", "--config-dir", dir)

	// Then: the file is left alone
	require.NoError(t, err)
	assert.Contains(t, output, "already exists")
	data, err := os.ReadFile(filepath.Join(dir, config.ProjectConfigName))
	require.NoError(t, err)
	assert.Equal(t, testProjectConfig, string(data))
}

func TestConfigInit_ForceKeepsBackup(t *testing.T) {
	dir := newProject(t)
	path := filepath.Join(dir, config.ProjectConfigName)

	output, err := runCLI(t, "config", "init", "--force", "--config-dir", dir)

	require.NoError(t, err)
	assert.Contains(t, output, "Backup:")
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	old, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, testProjectConfig, string(old))
}

func TestConfigInit_User(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	_, err := runCLI(t, "config", "init", "--user", "--config-dir", t.TempDir())

	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, ".config", "topicsearch", "config.yaml"))
}

func TestConfigShow_Merged(t *testing.T) {
	// Given: a project config and an env override
	dir := newProject(t)
	t.Setenv("TOPICSEARCH_ALPHA", "0.25")

	// When: showing the merged configuration as JSON
	output, err := runCLI(t, "config", "show", "--json", "--config-dir", dir)

	// Then: all layers are applied
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(output), &cfg))
	assert.InDelta(t, 0.25, cfg.Search.Alpha, 1e-9)
	assert.Equal(t, []string{"sci.space", "rec.autos", "rec.sport.hockey"}, cfg.Corpus.Categories)
	assert.False(t, cfg.Logging.File)
}

func TestConfigShow_Sources(t *testing.T) {
	dir := newProject(t)

	tests := []struct {
		source         string
		wantCategories int
		wantErr        bool
	}{
		{"defaults", len(config.DefaultCategories), false},
		{"project", 3, false},
		{"user", 0, true},
		{"bogus", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			output, err := runCLI(t, "config", "show", "--source", tt.source, "--config-dir", dir)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			var cfg config.Config
			require.NoError(t, yaml.Unmarshal([]byte(output), &cfg))
			assert.Len(t, cfg.Corpus.Categories, tt.wantCategories)
		})
	}
}

func TestConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)

	output, err := runCLI(t, "config", "path", "--config-dir", "/srv/project")

	require.NoError(t, err)
	assert.Contains(t, output, filepath.Join(home, "topicsearch", "config.yaml"))
	assert.Contains(t, output, "/srv/project/.topicsearch.yaml")
}
