// Package mock provides test double implementations of the ai interfaces.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	embedder := mock.NewMockEmbedder().WithDimensions(4)
//	client := ai.NewClient(embedder)
//
//	// Custom behavior injection
//	embedder.WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("quota exceeded")
//	})
//
//	// Check call counts
//	count := embedder.CallCount()
//
// # Default Behavior
//
// MockEmbedder returns deterministic unit vectors derived from an FNV hash of
// the input text, so equal texts always map to equal vectors. The package
// level Vector function exposes the same mapping for seeding stores in tests.
package mock
