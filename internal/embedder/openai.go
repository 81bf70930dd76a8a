package embedder

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/tomerlieber/docflow/internal/apperr"
)

const defaultEmbedTimeout = 30 * time.Second

// OpenAIEmbedder calls OpenAI's embeddings API, grounded on the teacher's
// internal/embeddings/openai.go.
type OpenAIEmbedder struct {
	model     openai.EmbeddingModel
	client    *openai.Client
	dimension int
}

// NewOpenAIEmbedder builds a client against api.openai.com. dimension must
// match the configured vector index dimension.
func NewOpenAIEmbedder(apiKey string, model openai.EmbeddingModel, dimension int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, apperr.New(apperr.KindPermanent, "openai api key required")
	}
	if model == "" {
		model = openai.EmbeddingModelTextEmbedding3Small
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIEmbedder{model: model, client: &cli, dimension: dimension}, nil
}

func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, defaultEmbedTimeout)
	defer cancel()

	inputs := make([]string, len(texts))
	copy(inputs, texts)

	resp, err := e.client.Embeddings.New(reqCtx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
		Model: e.model,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "embeddings request failed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperr.New(apperr.KindTransient, "embeddings response length mismatch")
	}

	vectors := make([]Vector, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != e.dimension {
			return nil, apperr.New(apperr.KindPermanent, "embedding dimension mismatch with configured vector_dimension")
		}
		vec := make(Vector, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}
