package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/topicsearch/internal/config"
	"github.com/Aman-CERP/topicsearch/internal/eval"
)

func TestProjectConfigTemplate_MatchesDefaults(t *testing.T) {
	// Given: the template written to disk
	path := filepath.Join(t.TempDir(), config.ProjectConfigName)
	require.NoError(t, os.WriteFile(path, []byte(ProjectConfigTemplate), 0o644))

	// When: loading it
	cfg, err := config.LoadFile(path)

	// Then: it is valid and equals the built-in defaults
	require.NoError(t, err)
	assert.Equal(t, config.NewConfig(), cfg)
}

func TestEvalSuiteTemplate_Parses(t *testing.T) {
	suite, err := eval.ParseSuite([]byte(EvalSuiteTemplate))

	require.NoError(t, err)
	require.Len(t, suite.Queries, 2)
	assert.Equal(t, "sci.space", suite.Queries[0].Category)
	assert.Equal(t, 5, suite.Queries[1].K)
}
