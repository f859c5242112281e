package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/servicefinder/compose"
	"github.com/poiesic/servicefinder/core"
)

// Client wraps an Embedder with input validation and error classification.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	embedder Embedder
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// NewClient creates a client around the given provider.
func NewClient(embedder Embedder, opts ...ClientOption) *Client {
	c := &Client{
		embedder: embedder,
		logger:   slog.Default().With("component", "embedding-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model identifier of the underlying provider.
func (c *Client) Model() string {
	return c.embedder.Model()
}

// Dimensions returns the vector length of the underlying provider.
func (c *Client) Dimensions() int {
	return c.embedder.Dimensions()
}

// BatchResult holds the vectors for the non-blank entries of a batch.
// Indices[i] is the position in the original input that Vectors[i] belongs to.
type BatchResult struct {
	Vectors [][]float32
	Indices []int
}

// Embed generates the vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text must be a non-empty string", core.ErrInvalidInput)
	}

	vector, err := c.embedder.EmbedText(ctx, text)
	if err != nil {
		c.logger.Debug("embedding failed", "length", len(text), "err", err)
		return nil, classify(err)
	}

	if err := core.ValidateEmbedding(vector, c.embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrProvider, err)
	}
	return vector, nil
}

// EmbedBatch generates vectors for the non-blank entries of texts.
// Blank entries are dropped before the provider call; the result reports
// which original indices were kept.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) (*BatchResult, error) {
	valid := make([]string, 0, len(texts))
	indices := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		valid = append(valid, text)
		indices = append(indices, i)
	}
	if len(valid) == 0 {
		return nil, core.ErrNoValidInput
	}

	vectors, err := c.embedder.EmbedTexts(ctx, valid)
	if err != nil {
		c.logger.Debug("batch embedding failed", "count", len(valid), "err", err)
		return nil, classify(err)
	}
	if len(vectors) != len(valid) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", core.ErrProvider, len(valid), len(vectors))
	}

	dims := c.embedder.Dimensions()
	for _, v := range vectors {
		if err := core.ValidateEmbedding(v, dims); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrProvider, err)
		}
	}

	return &BatchResult{Vectors: vectors, Indices: indices}, nil
}

// EmbedRecord composes the record into text and embeds it.
// Composition errors propagate as core.ErrCompose.
func (c *Client) EmbedRecord(ctx context.Context, record *core.Record) ([]float32, error) {
	text, err := compose.Compose(record)
	if err != nil {
		return nil, err
	}
	return c.Embed(ctx, text)
}

// HeadlineEmbedding embeds the record's name and subtitle on a best-effort
// basis. Failures are returned inside the Result rather than as an error so
// the caller can decide whether the headline vector is optional.
func (c *Client) HeadlineEmbedding(ctx context.Context, record *core.Record) core.Result[[]float32] {
	text, err := compose.ComposeHeadline(record)
	if err != nil {
		return core.Err[[]float32](err)
	}
	vector, err := c.Embed(ctx, text)
	if err != nil {
		c.logger.Warn("headline embedding skipped", "id", record.ID, "err", err)
		return core.Err[[]float32](err)
	}
	return core.Ok(vector)
}

// classify maps a provider error onto the embedding error taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, core.ErrMissingCredentials), errors.Is(err, core.ErrProvider):
		return err
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrNoValidInput):
		return err
	default:
		return fmt.Errorf("%w: %w", core.ErrProvider, err)
	}
}
