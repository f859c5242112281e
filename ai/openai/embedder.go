package openai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/servicefinder/ai"
	"github.com/poiesic/servicefinder/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// anonymousToken is sent to local OpenAI-compatible services that don't require authentication.
const anonymousToken = "none"

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
// The underlying client is created on first use and reused afterwards.
type Embedder struct {
	config *ai.Config
	logger *slog.Logger

	once     sync.Once
	embedder embeddings.Embedder
	initErr  error
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Embedder{
		config: config,
		logger: slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
// No network connection is made until the first embedding call.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// connect initializes the langchaingo client exactly once.
// A missing API key fails before any network call.
func (e *Embedder) connect() error {
	e.once.Do(func() {
		token := e.config.ResolveAPIKey()
		if token == "" {
			if !e.config.AllowAnonymous {
				e.initErr = fmt.Errorf("%w: set %s or configure an API key", core.ErrMissingCredentials, ai.APIKeyEnv)
				return
			}
			token = anonymousToken
		}

		client, err := openai.New(
			openai.WithBaseURL(e.config.Host),
			openai.WithToken(token),
			openai.WithEmbeddingModel(e.config.Model),
		)
		if err != nil {
			e.initErr = fmt.Errorf("%w: %w", core.ErrProvider, err)
			return
		}

		// Keep line structure; composed records rely on it.
		embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(false))
		if err != nil {
			e.initErr = fmt.Errorf("%w: %w", core.ErrProvider, err)
			return
		}

		e.embedder = embedder
		e.logger.Debug("embedding client initialized", "host", e.config.Host, "model", e.config.Model)
	})
	return e.initErr
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: provider returned no embedding", core.ErrProvider)
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.connect(); err != nil {
		return nil, err
	}

	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		if llms.IsAuthenticationError(openai.MapError(err)) {
			return nil, fmt.Errorf("%w: %w: %w", core.ErrProvider, core.ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("%w: %w", core.ErrProvider, err)
	}

	return vectors, nil
}

// Model returns the configured model identifier.
func (e *Embedder) Model() string {
	return e.config.Model
}

// Dimensions returns the configured vector length.
func (e *Embedder) Dimensions() int {
	return e.config.Dimensions
}
