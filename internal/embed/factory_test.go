package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/topicsearch/internal/config"
)

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.EmbeddingsConfig
		wantModel string
		wantDims  int
		wantErr   string
	}{
		{
			name:      "empty provider is static",
			cfg:       config.EmbeddingsConfig{},
			wantModel: "static",
			wantDims:  StaticDimensions,
		},
		{
			name:      "static with custom width",
			cfg:       config.EmbeddingsConfig{Provider: "Static", Dimensions: 64},
			wantModel: "static",
			wantDims:  64,
		},
		{
			name:    "openai without key",
			cfg:     config.EmbeddingsConfig{Provider: "openai", OpenAIAPIKeyEnv: "TOPICSEARCH_TEST_MISSING_KEY", Dimensions: 8},
			wantErr: "API key",
		},
		{
			name:    "unknown provider",
			cfg:     config.EmbeddingsConfig{Provider: "mlx"},
			wantErr: "unknown embeddings provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewFromConfig(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, e.ModelName())
			assert.Equal(t, tt.wantDims, e.Dimensions())
		})
	}
}

func TestNewFromConfig_OpenAIKeyFromEnv(t *testing.T) {
	t.Setenv("TOPICSEARCH_TEST_KEY", "sk-test")

	e, err := NewFromConfig(context.Background(), config.EmbeddingsConfig{
		Provider:        "openai",
		OpenAIAPIKeyEnv: "TOPICSEARCH_TEST_KEY",
		Dimensions:      16,
	})
	require.NoError(t, err)
	assert.Equal(t, 16, e.Dimensions())
}

func TestWithCache_Static(t *testing.T) {
	inner := NewStaticEmbedder()

	assert.Same(t, inner, WithCache(inner, 0).(*StaticEmbedder))

	cached, ok := WithCache(inner, 10).(*CachedEmbedder)
	require.True(t, ok)
	assert.Same(t, inner, cached.Inner().(*StaticEmbedder))
}
