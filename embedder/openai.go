package embedder

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel      = "text-embedding-3-small"
	defaultOpenAIDimensions = 1536
)

type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions *int
}

type OpenAIOption func(*OpenAIEmbedder) error

func WithOpenAIModel(model string) OpenAIOption {
	return func(e *OpenAIEmbedder) error {
		if model != "" {
			e.model = model
		}
		return nil
	}
}

func WithOpenAIDimensions(dimensions int) OpenAIOption {
	return func(e *OpenAIEmbedder) error {
		if dimensions > 0 {
			e.dimensions = &dimensions
		}
		return nil
	}
}

func NewOpenAIEmbedder(apiKey, endpoint string, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set (use OPENAI_API_KEY environment variable)")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		clientCfg.BaseURL = endpoint
	}

	e := &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  defaultOpenAIModel,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions != nil {
		req.Dimensions = *e.dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// Sort by index to maintain order
	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		embeddings[item.Index] = item.Embedding
	}
	return embeddings, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	if e.dimensions != nil {
		return *e.dimensions
	}
	return defaultOpenAIDimensions
}

func (e *OpenAIEmbedder) Close() error {
	return nil
}
