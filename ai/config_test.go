package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Host)
	assert.Equal(t, ModelEmbedding3Large, cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.APIKey)
	assert.False(t, cfg.AllowAnonymous)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, "https://api.openai.com/v1", cfg.Host)
		assert.Equal(t, ModelEmbedding3Large, cfg.Model)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.Host)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithHost("http://localhost:11434/v1"),
			WithAPIKey("sk-test"),
			WithModel("nomic-embed-text"),
			WithDimensions(768),
			WithTimeout(5*time.Second),
			WithAnonymous(true),
		)

		assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.Equal(t, "nomic-embed-text", cfg.Model)
		assert.Equal(t, 768, cfg.Dimensions)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.True(t, cfg.AllowAnonymous)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		model    string
		wantHost string
		wantDims int
	}{
		{name: "adds v1", host: "http://localhost:11434", model: ModelEmbedding3Small, wantHost: "http://localhost:11434/v1", wantDims: 1536},
		{name: "trailing slash", host: "http://localhost:11434/", model: ModelEmbedding3Large, wantHost: "http://localhost:11434/v1", wantDims: 3072},
		{name: "already normalized", host: "https://api.openai.com/v1", model: ModelAda002, wantHost: "https://api.openai.com/v1", wantDims: 1536},
		{name: "unknown model", host: "http://h/v1", model: "custom", wantHost: "http://h/v1", wantDims: 0},
		{name: "empty host", host: "", model: ModelEmbedding3Small, wantHost: "", wantDims: 1536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Host: tt.host, Model: tt.model}
			cfg.Normalize()
			assert.Equal(t, tt.wantHost, cfg.Host)
			assert.Equal(t, tt.wantDims, cfg.Dimensions)
		})
	}
}

func TestConfigNormalize_KeepsExplicitDimensions(t *testing.T) {
	cfg := NewConfig(WithModel(ModelEmbedding3Large), WithDimensions(256))
	cfg.Normalize()
	assert.Equal(t, 256, cfg.Dimensions)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "default is valid", cfg: DefaultConfig()},
		{name: "missing host", cfg: NewConfig(WithHost("")), wantErr: "Host is required"},
		{name: "missing model", cfg: NewConfig(WithModel("")), wantErr: "Model is required"},
		{name: "unknown model without dimensions", cfg: NewConfig(WithModel("custom")), wantErr: "Dimensions is required"},
		{name: "unknown model with dimensions", cfg: NewConfig(WithModel("custom"), WithDimensions(16))},
		{name: "zero timeout", cfg: NewConfig(WithTimeout(0)), wantErr: "Timeout must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "ai config: ")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "sk-env")

	assert.Equal(t, "sk-env", NewConfig().ResolveAPIKey())
	assert.Equal(t, "sk-explicit", NewConfig(WithAPIKey("sk-explicit")).ResolveAPIKey())

	t.Setenv(APIKeyEnv, "")
	assert.Empty(t, NewConfig().ResolveAPIKey())
}
