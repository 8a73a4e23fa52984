// Package index builds the persisted search indexes from a corpus and opens
// them again for querying.
//
// A data directory holds:
//
//	corpus.db        documents, categories and embeddings (SQLite)
//	bm25.bleve|.db   keyword index
//	vectors.hnsw     vector graph (+ .meta id mappings)
//	manifest.yaml    embedder and corpus summary of the last build
package index

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Artifact names inside a data directory.
const (
	CorpusFile   = "corpus.db"
	BM25Base     = "bm25"
	VectorFile   = "vectors.hnsw"
	ManifestFile = "manifest.yaml"

	// stagingDir receives a build before it replaces the live artifacts.
	stagingDir = ".build"
)

// ManifestVersion is bumped when the on-disk layout changes.
const ManifestVersion = 1

// Manifest records what a build produced and with which embedder.
type Manifest struct {
	Version        int       `yaml:"version"`
	EmbedderModel  string    `yaml:"embedder_model"`
	Dimensions     int       `yaml:"dimensions"`
	LexicalBackend string    `yaml:"lexical_backend"`
	Documents      int       `yaml:"documents"`
	Categories     []string  `yaml:"categories"`
	BuiltAt        time.Time `yaml:"built_at"`
}

// WriteManifest writes m to dir/manifest.yaml.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest reads dir/manifest.yaml. A missing file returns an error
// satisfying os.IsNotExist.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("manifest version %d is not supported (want %d)", m.Version, ManifestVersion)
	}
	return &m, nil
}

// promote moves every entry of the staging directory into dataDir,
// replacing what was there.
func promote(staging, dataDir string) error {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return fmt.Errorf("failed to read staging directory: %w", err)
	}
	for _, e := range entries {
		dst := filepath.Join(dataDir, e.Name())
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dst, err)
		}
		if err := os.Rename(filepath.Join(staging, e.Name()), dst); err != nil {
			return fmt.Errorf("failed to move %s into place: %w", e.Name(), err)
		}
	}
	return os.Remove(staging)
}

// removeStaleBM25 drops a keyword index left by a build with the other backend.
func removeStaleBM25(dataDir, backend string) {
	stale := filepath.Join(dataDir, BM25Base+".db")
	if backend == "sqlite" {
		stale = filepath.Join(dataDir, BM25Base+".bleve")
	}
	_ = os.RemoveAll(stale)
	_ = os.Remove(stale + "-wal")
	_ = os.Remove(stale + "-shm")
}
