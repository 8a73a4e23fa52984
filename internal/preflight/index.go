package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/topicsearch/internal/index"
)

// CheckCorpus reports whether the configured corpus file exists. Missing
// corpora only matter for 'topicsearch index', so this is a warning.
func (c *Checker) CheckCorpus() CheckResult {
	result := CheckResult{
		Name:     "corpus",
		Required: false,
	}

	info, err := os.Stat(c.corpusPath)
	switch {
	case err != nil:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("corpus not found at %s", c.corpusPath)
		result.Details = "Set corpus.path or pass --corpus to 'topicsearch index'"
	case info.IsDir():
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is a directory, want a JSONL file", c.corpusPath)
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s (%s)", c.corpusPath, formatBytes(uint64(info.Size())))
	}
	return result
}

// CheckIndex reads the manifest and compares it with the configured embedder.
func (c *Checker) CheckIndex() CheckResult {
	result := CheckResult{
		Name:     "index",
		Required: false,
	}

	m, err := index.ReadManifest(c.cfg.Index.DataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Status = StatusWarn
			result.Message = "no index (run 'topicsearch index')"
			return result
		}
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	result.Details = fmt.Sprintf("%s, %d dims, %s keyword index, built %s",
		m.EmbedderModel, m.Dimensions, m.LexicalBackend, m.BuiltAt.Format(time.RFC3339))

	if want := c.cfg.Embeddings.Dimensions; want > 0 && want != m.Dimensions {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("index has %d dimensions, embeddings.dimensions is %d (rebuild the index)", m.Dimensions, want)
		return result
	}
	if buildInProgress(c.cfg.Index.DataDir) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d documents, a build is in progress", m.Documents)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d documents in %d categories", m.Documents, len(m.Categories))
	return result
}

// buildInProgress reports whether another process holds the build lock.
func buildInProgress(dataDir string) bool {
	l := index.NewBuildLock(dataDir)
	ok, err := l.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = l.Unlock()
		return false
	}
	return true
}

// CheckEmbedder builds the configured embedder and asks whether it can serve.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: true,
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	e, err := c.newEmbedder(ctx, c.cfg.Embeddings)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	defer func() { _ = e.Close() }()

	if !e.Available(ctx) {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s (%s) is not available", e.ModelName(), c.cfg.Embeddings.Provider)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s, %d dims", e.ModelName(), e.Dimensions())
	return result
}

// existingParent walks up from path to the first directory that exists.
func existingParent(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
