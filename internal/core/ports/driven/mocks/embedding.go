package mocks

import (
	"context"
	"sync"
)

// MockEmbeddingService returns deterministic vectors derived from text length.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	calls      int

	EmbedFn func(texts []string) ([][]float32, error)
}

// NewMockEmbeddingService creates a mock producing vectors of the given size.
func NewMockEmbeddingService(dimensions int) *MockEmbeddingService {
	return &MockEmbeddingService{dimensions: dimensions}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.EmbedFn != nil {
		return m.EmbedFn(texts)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, m.dimensions)
		for j := range vec {
			vec[j] = float32(len(text)+j) / 100
		}
		out[i] = vec
	}
	return out, nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return "mock-embedding"
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

// Calls returns the number of Embed invocations.
func (m *MockEmbeddingService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
