package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// Ensure OllamaEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*OllamaEmbedding)(nil)

var ollamaModelDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
}

// OllamaEmbedding implements EmbeddingService against a local Ollama server.
type OllamaEmbedding struct {
	client     *ollama.Client
	httpClient *http.Client
	model      string
	dimensions int
}

// NewOllamaEmbedding creates an Ollama embedding service.
// An empty host uses http://localhost:11434.
func NewOllamaEmbedding(host, model string) (driven.EmbeddingService, error) {
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama host %q: %w", host, err)
	}
	if model == "" {
		model = "nomic-embed-text"
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	return &OllamaEmbedding{
		client:     ollama.NewClient(u, httpClient),
		httpClient: httpClient,
		model:      model,
		dimensions: ollamaModelDimensions[model],
	}, nil
}

// Embed generates embeddings for multiple texts in one request.
func (e *OllamaEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	if e.dimensions == 0 && len(resp.Embeddings[0]) > 0 {
		e.dimensions = len(resp.Embeddings[0])
	}
	return resp.Embeddings, nil
}

// Dimensions returns the vector size. For unknown models it is learnt
// from the first response and is 0 before that.
func (e *OllamaEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *OllamaEmbedding) Model() string {
	return e.model
}

// Close releases idle connections.
func (e *OllamaEmbedding) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}
