package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.topicsearch/logs, or a temp dir fallback.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".topicsearch", "logs")
	}
	return filepath.Join(home, ".topicsearch", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "topicsearch.log")
}
