// Package embedder provides embedding clients used to vectorize entity
// names and facts for similarity search.
package embedder

import "context"

// Client is the interface for embedding providers.
type Client interface {
	// Embed generates embeddings for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Close releases resources held by the client.
	Close() error
}

// Config holds configuration for embedding clients.
type Config struct {
	Model     string
	BaseURL   string
	BatchSize int
}
