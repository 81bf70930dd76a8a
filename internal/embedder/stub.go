package embedder

import (
	"context"
	"hash/fnv"
)

// StubEmbedder produces deterministic, content-derived vectors without
// calling out to OpenAI, for local development and EMBEDDER_PROVIDER=stub
// deploys where no API key is configured. Same text always maps to the
// same vector, which is enough to exercise upsert/query/snapshot plumbing
// without an external dependency; it carries no semantic meaning.
type StubEmbedder struct {
	dimension int
}

func NewStubEmbedder(dimension int) *StubEmbedder {
	return &StubEmbedder{dimension: dimension}
}

func (e *StubEmbedder) Dimension() int { return e.dimension }

func (e *StubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	vectors := make([]Vector, len(texts))
	for i, text := range texts {
		vectors[i] = e.embedOne(text)
	}
	return vectors, nil
}

func (e *StubEmbedder) embedOne(text string) Vector {
	vec := make(Vector, e.dimension)
	h := fnv.New64a()
	seed := make([]byte, 8)
	for j := 0; j < e.dimension; j++ {
		h.Reset()
		_, _ = h.Write([]byte(text))
		seed[0] = byte(j)
		_, _ = h.Write(seed[:1])
		sum := h.Sum64()
		vec[j] = float32(sum%2000)/1000 - 1
	}
	return vec
}
