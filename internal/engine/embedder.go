package engine

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"sift/internal/mathutil"
)

// Embedder is the external embedding producer contract: query text in,
// unit-length vector out. An error or empty vector means "no embedding",
// which the engine surfaces as an empty result list, never as a failure.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dims() int
}

// OpenAIEmbedder produces query embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAIEmbedder creates an embedder for the given model.
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("engine: OpenAI API key not set")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}

	dims := 1536
	if model == "text-embedding-3-large" {
		dims = 3072
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dims:   dims,
	}, nil
}

// Embed returns the unit-normalized embedding for the text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("engine: cannot embed empty text")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("engine: no embedding data returned")
	}

	return mathutil.Normalize(resp.Data[0].Embedding), nil
}

// Dims returns the embedding dimensionality of the model.
func (e *OpenAIEmbedder) Dims() int { return e.dims }
