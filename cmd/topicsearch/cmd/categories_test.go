package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
)

func TestCategoriesCmd_Table(t *testing.T) {
	// Given: an indexed project
	dir := newIndexedProject(t)

	// When: listing categories
	output, err := runCLI(t, "categories", "--config-dir", dir)

	// Then: every category is listed with its count
	require.NoError(t, err)
	assert.Contains(t, output, "CATEGORY")
	assert.Regexp(t, `rec\.autos\s+2`, output)
	assert.Regexp(t, `rec\.sport\.hockey\s+2`, output)
	assert.Regexp(t, `sci\.space\s+2`, output)
}

func TestCategoriesCmd_JSON(t *testing.T) {
	dir := newIndexedProject(t)

	output, err := runCLI(t, "categories", "--json", "--config-dir", dir)

	require.NoError(t, err)
	var report categoriesReport
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Equal(t, 6, report.Documents)
	assert.Equal(t, "bleve", report.LexicalBackend)
	require.Len(t, report.Categories, 3)
	for _, c := range report.Categories {
		assert.Equal(t, 2, c.Count, c.Category)
	}
}

func TestCategoriesCmd_NoIndex(t *testing.T) {
	dir := newProject(t)

	_, err := runCLI(t, "categories", "--config-dir", dir)

	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeConfigNotFound, serrors.GetCode(err))
}
