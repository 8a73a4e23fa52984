package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// BM25Backend names a keyword index implementation.
type BM25Backend string

const (
	// BM25BackendBleve uses Bleve v2 (default). Single process, BoltDB holds
	// an exclusive lock.
	BM25BackendBleve BM25Backend = "bleve"

	// BM25BackendSQLite uses SQLite FTS5 in WAL mode.
	BM25BackendSQLite BM25Backend = "sqlite"
)

// NewBM25IndexWithBackend creates a keyword index. basePath has no
// extension; ".bleve" or ".db" is appended per backend. An empty basePath
// creates an in-memory index.
func NewBM25IndexWithBackend(basePath string, config BM25Config, backend string) (BM25Index, error) {
	switch backend {
	case string(BM25BackendBleve), "":
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveBM25Index(path, config)

	case string(BM25BackendSQLite):
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteBM25Index(path, config)

	default:
		return nil, fmt.Errorf("unknown BM25 backend: %s (valid options: bleve, sqlite)", backend)
	}
}

// DetectBM25Backend reports which backend an existing index at basePath
// uses, or "" when none exists.
func DetectBM25Backend(basePath string) BM25Backend {
	if dirExists(basePath + ".bleve") {
		return BM25BackendBleve
	}
	if fileExists(basePath + ".db") {
		return BM25BackendSQLite
	}
	return ""
}

// GetBM25IndexPath returns the on-disk location of the keyword index.
func GetBM25IndexPath(dataDir string, backend string) string {
	basePath := filepath.Join(dataDir, "bm25")
	switch backend {
	case string(BM25BackendSQLite):
		return basePath + ".db"
	default:
		return basePath + ".bleve"
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
