package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
)

// OllamaEmbedder generates embeddings through a local Ollama server.
type OllamaEmbedder struct {
	client    *OllamaClient
	config    OllamaConfig
	modelName string
	dims      int
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an embedder. Unless SkipHealthCheck is set the
// model must be installed and dimensions are probed when not configured.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig, opts ...OllamaClientOption) (*OllamaEmbedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	e := &OllamaEmbedder{
		client:    NewOllamaClient(cfg.Host, opts...),
		config:    cfg,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		name, err := e.findModel(checkCtx)
		if err != nil {
			e.client.Close()
			return nil, fmt.Errorf("failed to connect to Ollama or find model: %w", err)
		}
		e.modelName = name

		if e.dims == 0 {
			vecs, err := e.client.Embed(checkCtx, e.modelName, []string{"dimension probe"})
			if err != nil {
				e.client.Close()
				return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
			}
			e.dims = len(vecs[0])
		}
	}
	if e.dims == 0 {
		return nil, fmt.Errorf("embedding dimensions unknown for model %s", e.modelName)
	}
	return e, nil
}

// findModel resolves the configured model against installed ones,
// accepting a match with or without the tag.
func (e *OllamaEmbedder) findModel(ctx context.Context) (string, error) {
	models, err := e.client.ListModels(ctx)
	if err != nil {
		return "", err
	}

	want := strings.ToLower(e.config.Model)
	wantBase := strings.Split(want, ":")[0]
	for _, m := range models {
		name := strings.ToLower(m.Name)
		if name == want || strings.Split(name, ":")[0] == wantBase {
			return m.Name, nil
		}
	}
	return "", fmt.Errorf("model %s is not installed (run 'ollama pull %s')", e.config.Model, e.config.Model)
}

// Embed embeds one text. Blank text yields the zero vector.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in BatchSize requests. Blank texts are not sent.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
			continue
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(pending))
		batch := pending[start:end]

		batchTexts := make([]string, len(batch))
		for j, idx := range batch {
			batchTexts[j] = texts[idx]
		}

		reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		vecs, err := e.client.Embed(reqCtx, e.modelName, batchTexts)
		cancel()
		if err != nil {
			slog.Debug("embedding_batch_failed",
				slog.String("model", e.modelName),
				slog.Int("texts", len(batch)),
				slog.String("error", err.Error()))
			return nil, serrors.New(serrors.ErrCodeEmbeddingFailed, "ollama embedding failed", err).
				WithDetail("model", e.modelName)
		}

		for j, v := range vecs {
			if len(v) != e.dims {
				return nil, serrors.New(serrors.ErrCodeDimensionMismatch,
					fmt.Sprintf("model %s returned %d dimensions, expected %d", e.modelName, len(v), e.dims), nil)
			}
			results[batch[j]] = normalizeVector(toFloat32(v))
		}
	}
	return results, nil
}

// Dimensions returns the vector width.
func (e *OllamaEmbedder) Dimensions() int { return e.dims }

// ModelName returns the resolved model name.
func (e *OllamaEmbedder) ModelName() string { return e.modelName }

// Available reports whether the server answers and the breaker is not open.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	if e.client.Breaker().State() == serrors.StateOpen {
		return false
	}
	_, err := e.findModel(ctx)
	return err == nil
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.client.Close()
	return nil
}
