package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/pkg/version"
)

// DefaultOpenAIModel is the embedding model used when none is configured.
const DefaultOpenAIModel = string(openai.SmallEmbedding3)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	APIKey string

	// BaseURL points at a compatible server; empty uses api.openai.com.
	BaseURL string

	Model string

	// Dimensions requests shortened vectors when the model supports it.
	Dimensions int

	BatchSize int
	Timeout   time.Duration
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client  *openai.Client
	config  OpenAIConfig
	model   openai.EmbeddingModel
	retry   serrors.RetryConfig
	breaker *serrors.CircuitBreaker
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder. Dimensions must be known up front
// because the vector store is sized before the first call.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai embeddings need an API key or a base URL")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("openai embeddings need explicit dimensions")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Transport: userAgentTransport{base: http.DefaultTransport}}

	retry := serrors.DefaultRetryConfig()
	retry.Jitter = true
	retry.ShouldRetry = shouldRetryOpenAI

	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(clientCfg),
		config:  cfg,
		model:   openai.EmbeddingModel(cfg.Model),
		retry:   retry,
		breaker: serrors.NewCircuitBreaker("openai"),
	}, nil
}

// shouldRetryOpenAI retries rate limits, server errors and transport failures.
func shouldRetryOpenAI(err error) bool {
	if errors.Is(err, serrors.ErrCircuitOpen) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return true
}

// Embed embeds one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in BatchSize requests. Blank texts are not sent.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.config.Dimensions)
			continue
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += e.config.BatchSize {
		batch := pending[start:min(start+e.config.BatchSize, len(pending))]
		input := make([]string, len(batch))
		for j, idx := range batch {
			input[j] = texts[idx]
		}

		resp, err := serrors.RetryWithResult(ctx, e.retry, func() (openai.EmbeddingResponse, error) {
			return serrors.Execute(e.breaker, func() (openai.EmbeddingResponse, error) {
				reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
				defer cancel()
				return e.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequest{
					Input:          input,
					Model:          e.model,
					EncodingFormat: openai.EmbeddingEncodingFormatFloat,
					Dimensions:     e.config.Dimensions,
				})
			})
		})
		if err != nil {
			return nil, serrors.New(serrors.ErrCodeEmbeddingFailed, "openai embedding failed", err).
				WithDetail("model", string(e.model))
		}
		if len(resp.Data) != len(batch) {
			return nil, serrors.New(serrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("openai returned %d embeddings for %d texts", len(resp.Data), len(batch)), nil)
		}

		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, serrors.New(serrors.ErrCodeEmbeddingFailed,
					fmt.Sprintf("openai returned out-of-range index %d", d.Index), nil)
			}
			if len(d.Embedding) != e.config.Dimensions {
				return nil, serrors.New(serrors.ErrCodeDimensionMismatch,
					fmt.Sprintf("model %s returned %d dimensions, expected %d", e.model, len(d.Embedding), e.config.Dimensions), nil)
			}
			results[batch[d.Index]] = normalizeVector(d.Embedding)
		}
	}
	return results, nil
}

// Dimensions returns the vector width.
func (e *OpenAIEmbedder) Dimensions() int { return e.config.Dimensions }

// ModelName returns the configured model.
func (e *OpenAIEmbedder) ModelName() string { return string(e.model) }

// Available is false while the breaker is open.
func (e *OpenAIEmbedder) Available(_ context.Context) bool {
	return e.breaker.State() != serrors.StateOpen
}

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error { return nil }

// userAgentTransport stamps requests with the topicsearch user agent.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", version.UserAgent())
	return t.base.RoundTrip(req)
}
