package memory

import "context"

// Embedder turns text into a vector for similarity search. A nil vector with
// a nil error means embeddings are off; SQLiteLTM then ranks by recency.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NoopEmbedder disables embeddings.
type NoopEmbedder struct{}

func (NoopEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, nil }

var _ Embedder = NoopEmbedder{}
