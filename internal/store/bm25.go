package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	// TopicTokenizerName is the registered prose tokenizer.
	TopicTokenizerName = "topic_tokenizer"

	// TopicStopFilterType is the registered stop word filter type.
	TopicStopFilterType = "topic_stop"

	topicStopFilterName = "topic_stop_words"
	topicAnalyzerName   = "topic_analyzer"

	fieldTitle    = "title"
	fieldContent  = "content"
	fieldCategory = "category"
)

func init() {
	_ = registry.RegisterTokenizer(TopicTokenizerName, topicTokenizerConstructor)
	_ = registry.RegisterTokenFilter(TopicStopFilterType, topicStopFilterConstructor)
}

// BleveBM25Index wraps Bleve v2 for BM25 keyword search over title, content
// and an exact-match category field.
type BleveBM25Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config BM25Config
	closed bool
}

var _ BM25Index = (*BleveBM25Index)(nil)

// validateIndexIntegrity checks index_meta.json before opening a disk index.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("index_meta.json unreadable: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// NewBleveBM25Index opens or creates a keyword index at path.
// An empty path creates an in-memory index. A corrupted index directory is
// removed and recreated empty.
func NewBleveBM25Index(path string, config BM25Config) (*BleveBM25Index, error) {
	config = config.withDefaults()

	indexMapping, err := createIndexMapping(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("bm25_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("BM25 index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveBM25Index{index: idx, path: path, config: config}, nil
}

// createIndexMapping maps title and content through the prose analyzer and
// category as a single keyword term.
func createIndexMapping(config BM25Config) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	stopWords := make([]any, len(config.StopWords))
	for i, w := range config.StopWords {
		stopWords[i] = w
	}
	if err := indexMapping.AddCustomTokenFilter(topicStopFilterName, map[string]any{
		"type":       TopicStopFilterType,
		"stop_words": stopWords,
	}); err != nil {
		return nil, fmt.Errorf("failed to add stop filter: %w", err)
	}

	if err := indexMapping.AddCustomTokenizer(TopicTokenizerName+"_cfg", map[string]any{
		"type":       TopicTokenizerName,
		"min_length": float64(config.MinTokenLength),
	}); err != nil {
		return nil, fmt.Errorf("failed to add tokenizer: %w", err)
	}

	if err := indexMapping.AddCustomAnalyzer(topicAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     TopicTokenizerName + "_cfg",
		"token_filters": []string{topicStopFilterName},
	}); err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = topicAnalyzerName

	docMapping := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = topicAnalyzerName
	textField.Store = false
	textField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(fieldTitle, textField)
	docMapping.AddFieldMappingsAt(fieldContent, textField)

	keywordField := bleve.NewKeywordFieldMapping()
	keywordField.Store = false
	keywordField.IncludeInAll = false
	docMapping.AddFieldMappingsAt(fieldCategory, keywordField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping, nil
}

// Index adds or replaces documents in one batch.
func (b *BleveBM25Index) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields := map[string]any{
			fieldTitle:    doc.Title,
			fieldContent:  doc.Content,
			fieldCategory: doc.Category,
		}
		if err := batch.Index(doc.ID, fields); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search runs a title-boosted match over title and content. A category
// narrows hits with a keyword term conjunction.
func (b *BleveBM25Index) Search(ctx context.Context, queryStr string, category string, limit int) ([]*BM25Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(queryStr) == "" || limit <= 0 {
		return []*BM25Result{}, nil
	}

	titleQ := bleve.NewMatchQuery(queryStr)
	titleQ.SetField(fieldTitle)
	titleQ.SetBoost(b.config.TitleBoost)

	contentQ := bleve.NewMatchQuery(queryStr)
	contentQ.SetField(fieldContent)

	var q blevequery.Query = bleve.NewDisjunctionQuery(titleQ, contentQ)
	if category != "" {
		filter := bleve.NewTermQuery(category)
		filter.SetField(fieldCategory)
		q = bleve.NewConjunctionQuery(q, filter)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*BM25Result, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &BM25Result{
			DocID:        hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}
	return results, nil
}

// Delete removes documents by id.
func (b *BleveBM25Index) Delete(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range docIDs {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// AllIDs returns every indexed id.
func (b *BleveBM25Index) AllIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	count, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search for all IDs: %w", err)
	}
	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Stats returns index statistics.
func (b *BleveBM25Index) Stats() *IndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return &IndexStats{}
	}
	count, _ := b.index.DocCount()
	return &IndexStats{DocumentCount: int(count)}
}

// Close closes the index. Idempotent.
func (b *BleveBM25Index) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func extractMatchedTerms(hit *search.DocumentMatch) []string {
	seen := make(map[string]struct{})
	var terms []string
	for field, locations := range hit.Locations {
		if field != fieldTitle && field != fieldContent {
			continue
		}
		for term := range locations {
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				terms = append(terms, term)
			}
		}
	}
	return terms
}

func topicTokenizerConstructor(config map[string]any, _ *registry.Cache) (analysis.Tokenizer, error) {
	minLen := 2
	if v, ok := config["min_length"].(float64); ok && v > 0 {
		minLen = int(v)
	}
	return &bleveTopicTokenizer{minLen: minLen}, nil
}

// bleveTopicTokenizer adapts tokenSpans to Bleve.
type bleveTopicTokenizer struct {
	minLen int
}

// Tokenize implements analysis.Tokenizer.
func (t *bleveTopicTokenizer) Tokenize(input []byte) analysis.TokenStream {
	spans := tokenSpans(string(input), t.minLen)
	stream := make(analysis.TokenStream, 0, len(spans))
	for i, s := range spans {
		stream = append(stream, &analysis.Token{
			Term:     []byte(s.term),
			Start:    s.start,
			End:      s.end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return stream
}

func topicStopFilterConstructor(config map[string]any, _ *registry.Cache) (analysis.TokenFilter, error) {
	var words []string
	if raw, ok := config["stop_words"].([]any); ok {
		for _, w := range raw {
			if s, ok := w.(string); ok {
				words = append(words, s)
			}
		}
	}
	return &bleveStopFilter{stopWords: BuildStopWordMap(words)}, nil
}

type bleveStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *bleveStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := input[:0]
	for _, token := range input {
		if _, isStop := f.stopWords[string(token.Term)]; !isStop {
			out = append(out, token)
		}
	}
	return out
}
