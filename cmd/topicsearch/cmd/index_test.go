package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/internal/index"
	"github.com/Aman-CERP/topicsearch/internal/store"
)

func TestIndexCmd_BuildsIndex(t *testing.T) {
	// Given: a project with a corpus holding one off-topic document
	dir := newProject(t)

	// When: indexing
	output, err := runCLI(t, "index", "--config-dir", dir)

	// Then: the index is written under the project's data dir
	require.NoError(t, err)
	assert.Contains(t, output, "Loaded 6 documents")
	assert.Contains(t, output, "Skipped 1 documents")
	assert.Contains(t, output, "Indexed 6 documents")

	dataDir := filepath.Join(dir, ".topicsearch")
	assert.FileExists(t, filepath.Join(dataDir, index.ManifestFile))
	assert.FileExists(t, filepath.Join(dataDir, index.CorpusFile))
	assert.FileExists(t, filepath.Join(dataDir, index.VectorFile))
}

func TestIndexCmd_Check(t *testing.T) {
	dir := newProject(t)

	output, err := runCLI(t, "index", "--config-dir", dir, "--check")

	require.NoError(t, err)
	assert.Contains(t, output, "Consistency check passed (6 documents)")
}

func TestIndexCmd_Repair(t *testing.T) {
	// Given: an index whose vector store holds a vector with no document
	dir := newIndexedProject(t)
	dataDir := filepath.Join(dir, ".topicsearch")
	manifest, err := index.ReadManifest(dataDir)
	require.NoError(t, err)

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(manifest.Dimensions))
	require.NoError(t, err)
	vectorPath := filepath.Join(dataDir, index.VectorFile)
	require.NoError(t, vectors.Load(vectorPath))
	ghost := make([]float32, manifest.Dimensions)
	ghost[0] = 1
	require.NoError(t, vectors.Add(context.Background(), []string{"ghost"}, [][]float32{ghost}))
	require.NoError(t, vectors.Save(vectorPath))
	require.NoError(t, vectors.Close())

	// When: repairing
	output, err := runCLI(t, "index", "--config-dir", dir, "--repair")

	// Then: the orphan is reported and removed
	require.NoError(t, err)
	assert.Contains(t, output, "orphan_vector")
	assert.Contains(t, output, "ghost")
	assert.Contains(t, output, "Removed 1 orphan entries")

	// And: a second pass finds nothing to do
	output, err = runCLI(t, "index", "--config-dir", dir, "--repair")
	require.NoError(t, err)
	assert.Contains(t, output, "Consistency check passed (6 documents)")
}

func TestIndexCmd_RepairExcludesBuildFlags(t *testing.T) {
	dir := newIndexedProject(t)

	_, err := runCLI(t, "index", "--config-dir", dir, "--repair", "--check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestIndexCmd_CorpusFlag(t *testing.T) {
	// Given: a corpus outside the config dir
	dir := newProject(t)
	other := filepath.Join(t.TempDir(), "small.jsonl")
	require.NoError(t, os.WriteFile(other, []byte(testCorpusLines[0]+"\n"+testCorpusLines[2]+"\n"), 0o644))

	// When: indexing it with --corpus
	output, err := runCLI(t, "index", "--config-dir", dir, "--corpus", other)

	// Then: only those documents are indexed
	require.NoError(t, err)
	assert.Contains(t, output, "Indexed 2 documents")
}

func TestIndexCmd_Errors(t *testing.T) {
	tests := []struct {
		name     string
		corpus   string
		wantCode string
	}{
		{"missing corpus", "does-not-exist.jsonl", serrors.ErrCodeInvalidInput},
		{"only unknown categories", "unknown.jsonl", serrors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newProject(t)
			require.NoError(t, os.WriteFile(filepath.Join(dir, "unknown.jsonl"),
				[]byte(testCorpusLines[6]+"\n"), 0o644))

			_, err := runCLI(t, "index", "--config-dir", dir, "--corpus", filepath.Join(dir, tt.corpus))

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, serrors.GetCode(err))
		})
	}
}
