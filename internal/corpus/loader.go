package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
)

const maxLineBytes = 16 * 1024 * 1024

// LoadStats reports what LoadJSONL kept and skipped.
type LoadStats struct {
	Loaded          int
	Blank           int
	UnknownCategory int
	Empty           int
}

// Skipped returns the number of lines that did not produce a document.
func (s LoadStats) Skipped() int {
	return s.UnknownCategory + s.Empty
}

// LoadJSONL reads one JSON document per line from path.
// See ReadJSONL for line handling.
func LoadJSONL(path string, categories CategorySet) ([]Document, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, serrors.New(serrors.ErrCodeInvalidInput, fmt.Sprintf("cannot open corpus %s", path), err).
			WithSuggestion("Pass a JSONL corpus with --corpus or set corpus.path")
	}
	defer f.Close()
	return ReadJSONL(f, categories)
}

// ReadJSONL decodes {id,title,content,category} objects, one per line.
// A missing id becomes doc_<n> where n is the zero-based line number among
// non-blank lines; a missing title is derived from the content. Documents
// with an unknown category or no content are skipped and counted. A malformed
// line or a duplicate id aborts the load.
func ReadJSONL(r io.Reader, categories CategorySet) ([]Document, LoadStats, error) {
	var (
		docs  []Document
		stats LoadStats
		seen  = make(map[string]int)
		n     = 0
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			stats.Blank++
			continue
		}

		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, stats, serrors.New(serrors.ErrCodeInvalidInput,
				fmt.Sprintf("corpus line %d: malformed JSON", line), err)
		}

		if doc.ID == "" {
			doc.ID = fmt.Sprintf("doc_%d", n)
		}
		n++

		if strings.TrimSpace(doc.Content) == "" {
			stats.Empty++
			slog.Debug("corpus_document_skipped", slog.String("doc_id", doc.ID), slog.String("reason", "empty_content"))
			continue
		}
		if !categories.Contains(doc.Category) {
			stats.UnknownCategory++
			slog.Debug("corpus_document_skipped",
				slog.String("doc_id", doc.ID),
				slog.String("reason", "unknown_category"),
				slog.String("category", doc.Category))
			continue
		}
		if prev, dup := seen[doc.ID]; dup {
			return nil, stats, serrors.New(serrors.ErrCodeInvalidInput,
				fmt.Sprintf("corpus line %d: duplicate id %q (first seen on line %d)", line, doc.ID, prev), nil)
		}
		seen[doc.ID] = line

		if doc.Title == "" {
			doc.Title = DeriveTitle(doc.Content)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("failed to read corpus: %w", err)
	}

	stats.Loaded = len(docs)
	if stats.Skipped() > 0 {
		slog.Warn("corpus_documents_skipped",
			slog.Int("unknown_category", stats.UnknownCategory),
			slog.Int("empty", stats.Empty),
			slog.Int("loaded", stats.Loaded))
	}
	return docs, stats, nil
}
