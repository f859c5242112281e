package ai

import "context"

// Embedder generates vector embeddings from text.
// It is the boundary to the external embedding provider.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the identifier of the model producing the vectors.
	Model() string

	// Dimensions returns the length of every vector produced.
	Dimensions() int
}

// AIProvider owns the embedding provider connection for its lifetime.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider.
	// After Close is called, the provider should not be used.
	Close() error
}
