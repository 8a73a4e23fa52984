package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	serrors "github.com/Aman-CERP/topicsearch/internal/errors"
	"github.com/Aman-CERP/topicsearch/pkg/version"
)

// OllamaClient is a thin JSON client for the Ollama HTTP API shared by the
// embedder and the LLM classifier. Calls retry with backoff and go through
// a circuit breaker so a dead server fails fast.
type OllamaClient struct {
	host      string
	client    *http.Client
	transport *http.Transport
	retry     serrors.RetryConfig
	breaker   *serrors.CircuitBreaker
}

// statusError is a non-200 response from Ollama.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ollama returned status %d: %s", e.Code, e.Body)
}

// OllamaClientOption configures an OllamaClient.
type OllamaClientOption func(*OllamaClient)

// WithRetryConfig replaces the retry policy. A nil ShouldRetry keeps the
// default classification of retryable errors.
func WithRetryConfig(cfg serrors.RetryConfig) OllamaClientOption {
	return func(c *OllamaClient) {
		if cfg.ShouldRetry == nil {
			cfg.ShouldRetry = shouldRetryOllama
		}
		c.retry = cfg
	}
}

// WithBreaker replaces the circuit breaker.
func WithBreaker(cb *serrors.CircuitBreaker) OllamaClientOption {
	return func(c *OllamaClient) {
		if cb != nil {
			c.breaker = cb
		}
	}
}

// NewOllamaClient creates a client for host.
func NewOllamaClient(host string, opts ...OllamaClientOption) *OllamaClient {
	if host == "" {
		host = DefaultOllamaHost
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}

	// No client-wide timeout; each call carries its own context deadline.
	transport := &http.Transport{
		MaxIdleConns:        OllamaPoolSize,
		MaxIdleConnsPerHost: OllamaPoolSize,
		IdleConnTimeout:     10 * time.Second,
	}

	retry := serrors.DefaultRetryConfig()
	retry.Jitter = true
	retry.ShouldRetry = shouldRetryOllama

	c := &OllamaClient{
		host:      strings.TrimRight(host, "/"),
		client:    &http.Client{Transport: transport},
		transport: transport,
		retry:     retry,
		breaker:   serrors.NewCircuitBreaker("ollama"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// shouldRetryOllama retries transport failures and 5xx responses.
func shouldRetryOllama(err error) bool {
	if errors.Is(err, serrors.ErrCircuitOpen) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return true
}

// Host returns the normalized base URL.
func (c *OllamaClient) Host() string { return c.host }

// Breaker exposes the circuit breaker state.
func (c *OllamaClient) Breaker() *serrors.CircuitBreaker { return c.breaker }

// Embed calls /api/embed for texts and returns one vector per text.
func (c *OllamaClient) Embed(ctx context.Context, model string, texts []string) ([][]float64, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	var resp OllamaEmbedResponse
	if err := c.post(ctx, "/api/embed", OllamaEmbedRequest{Model: model, Input: input}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// Generate calls /api/generate without streaming and returns the response text.
func (c *OllamaClient) Generate(ctx context.Context, req OllamaGenerateRequest) (string, error) {
	req.Stream = false
	var resp OllamaGenerateResponse
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// ListModels calls /api/tags.
func (c *OllamaClient) ListModels(ctx context.Context) ([]OllamaModelInfo, error) {
	var resp OllamaModelListResponse
	err := serrors.Retry(ctx, c.retry, func() error {
		_, err := serrors.Execute(c.breaker, func() (struct{}, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, c.do(req, &resp)
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp.Models, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return serrors.Retry(ctx, c.retry, func() error {
		_, err := serrors.Execute(c.breaker, func() (struct{}, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
			if err != nil {
				return struct{}{}, err
			}
			req.Header.Set("Content-Type", "application/json")
			return struct{}{}, c.do(req, out)
		})
		return err
	})
}

func (c *OllamaClient) do(req *http.Request, out any) error {
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (c *OllamaClient) Close() {
	c.transport.CloseIdleConnections()
}
