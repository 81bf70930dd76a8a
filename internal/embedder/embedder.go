// Package embedder implements the Embedder capability from spec.md §1/§4.6:
// fixed-dimension vector embeddings for chunk text and search queries.
package embedder

import "context"

// Vector is a single embedding.
type Vector []float32

// Embedder produces fixed-dimension vectors for a batch of texts. The
// dimension D is a global deploy-time constant that must match the
// vector index's configured dimension.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
	Dimension() int
}
