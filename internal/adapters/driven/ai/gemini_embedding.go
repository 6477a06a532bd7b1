package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// Ensure GeminiEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*GeminiEmbedding)(nil)

// geminiBatchSize is the API's limit on contents per batch request.
const geminiBatchSize = 100

// GeminiEmbedding implements EmbeddingService using the Gemini API.
type GeminiEmbedding struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewGeminiEmbedding creates a Gemini embedding service. Extra client
// options (for example option.WithEndpoint) are appended after the API key.
func NewGeminiEmbedding(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (driven.EmbeddingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	dimensions := 3072
	if model == "text-embedding-004" {
		dimensions = 768
	}

	return &GeminiEmbedding{client: client, model: model, dimensions: dimensions}, nil
}

// Embed generates embeddings in batches of geminiBatchSize.
func (e *GeminiEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := e.client.EmbeddingModel(e.model)
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += geminiBatchSize {
		end := min(start+geminiBatchSize, len(texts))

		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}

		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini batch embed: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), end-start)
		}
		for _, emb := range resp.Embeddings {
			out = append(out, emb.Values)
		}
	}

	return out, nil
}

// Dimensions returns the embedding dimension size
func (e *GeminiEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *GeminiEmbedding) Model() string {
	return e.model
}

// Close closes the underlying client.
func (e *GeminiEmbedding) Close() error {
	return e.client.Close()
}
