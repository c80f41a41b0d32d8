package embedder

import "context"

// Embedder turns text into a fixed-dimension vector. Implementations are
// constructed explicitly and injected into the registry and watchers; there
// are no process-wide instances.
type Embedder interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for all texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension this embedder produces.
	Dimensions() int

	// Close releases any resources held by the embedder.
	Close() error
}
