package embed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Aman-CERP/topicsearch/internal/config"
)

// ProviderType names an embedding backend.
type ProviderType string

const (
	// ProviderStatic uses hash embeddings. Offline and deterministic.
	ProviderStatic ProviderType = "static"

	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI uses an OpenAI-compatible API.
	ProviderOpenAI ProviderType = "openai"
)

// NewFromConfig builds the embedder named by cfg.Provider. There is no
// silent fallback: an unavailable remote provider is an error.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	switch ProviderType(strings.ToLower(cfg.Provider)) {
	case ProviderStatic, "":
		return NewStaticEmbedderWithDimensions(cfg.Dimensions), nil

	case ProviderOllama:
		return NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.TimeoutDuration(),
		})

	case ProviderOpenAI:
		keyEnv := cfg.OpenAIAPIKeyEnv
		if keyEnv == "" {
			keyEnv = "OPENAI_API_KEY"
		}
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     os.Getenv(keyEnv),
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.TimeoutDuration(),
		})

	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s (valid options: static, ollama, openai)", cfg.Provider)
	}
}

// WithCache wraps e in a CachedEmbedder when size is positive.
func WithCache(e Embedder, size int) Embedder {
	if size <= 0 {
		return e
	}
	return NewCachedEmbedder(e, size)
}
