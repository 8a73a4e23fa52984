package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
)

func TestSearchCmd_RequiresIndex(t *testing.T) {
	// Given: a project that was never indexed
	dir := newProject(t)

	// When: searching
	_, err := runCLI(t, "search", "shuttle", "--config-dir", dir)

	// Then: the user is told to build an index
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeConfigNotFound, serrors.GetCode(err))
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	_, err := runCLI(t, "search")

	require.Error(t, err)
}

func TestSearchCmd_TextOutput(t *testing.T) {
	// Given: an indexed project
	dir := newIndexedProject(t)

	// When: searching without classification
	output, err := runCLI(t, "search", "shuttle", "launch", "--no-classify", "--config-dir", dir)

	// Then: the keyword match is listed first
	require.NoError(t, err)
	assert.Contains(t, output, `results for "shuttle launch"`)
	assert.Contains(t, output, "1. Shuttle launch [sci.space]")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	dir := newIndexedProject(t)

	output, err := runCLI(t, "search", "brake pads", "--no-classify", "--top-k", "2",
		"--format", "json", "--config-dir", dir)

	require.NoError(t, err)
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "brake pads", resp.Query)
	require.NotEmpty(t, resp.Results)
	assert.LessOrEqual(t, len(resp.Results), 2)
	assert.Equal(t, "a2", resp.Results[0].ID)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Nil(t, resp.Classification)
}

func TestSearchCmd_CategoryFilter(t *testing.T) {
	dir := newIndexedProject(t)

	output, err := runCLI(t, "search", "shuttle launch", "--category", "rec.sport.hockey",
		"--format", "json", "--config-dir", dir)

	require.NoError(t, err)
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "rec.sport.hockey", resp.CategoryFilter)
	for _, r := range resp.Results {
		assert.Equal(t, "rec.sport.hockey", r.Category)
	}
}

func TestSearchCmd_Metrics(t *testing.T) {
	dir := newIndexedProject(t)

	output, err := runCLI(t, "search", "goalie", "--no-classify", "--metrics", "--config-dir", dir)

	require.NoError(t, err)
	assert.Contains(t, output, "topicsearch_queries_total")
	assert.Contains(t, output, "topicsearch_search_duration_seconds")
}

func TestSearchCmd_InvalidInput(t *testing.T) {
	dir := newIndexedProject(t)

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"unknown category", []string{"--category", "comp.graphics"}, serrors.ErrCodeUnknownCategory},
		{"unknown format", []string{"--format", "xml"}, serrors.ErrCodeInvalidInput},
		{"negative top k", []string{"--top-k", "-1"}, serrors.ErrCodeInvalidInput},
		{"alpha out of range", []string{"--alpha", "1.5"}, serrors.ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"search", "engine", "--config-dir", dir}, tt.args...)

			_, err := runCLI(t, args...)

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, serrors.GetCode(err))
		})
	}
}

func TestGetSnippet(t *testing.T) {
	tests := []struct {
		name    string
		content string
		n       int
		want    []string
	}{
		{"skips blank lines", "one\n\n  two  \nthree\nfour", 3, []string{"one", "two", "three"}},
		{"fewer lines than n", "only", 3, []string{"only"}},
		{"long line truncated", strings.Repeat("x", 120), 1, []string{strings.Repeat("x", 97) + "..."}},
		{"empty", "", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getSnippet(tt.content, tt.n))
		})
	}
}
