package mocks

import (
	"context"
	"sync"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// MockIndexBackend records every AddDocuments call.
type MockIndexBackend struct {
	mu    sync.Mutex
	name  string
	calls map[string][]domain.ContentChunk
	count int

	AddDocumentsFn func(doc *domain.DocumentMetadata, chunks []domain.ContentChunk) error
}

// NewMockIndexBackend creates a backend with the given name.
func NewMockIndexBackend(name string) *MockIndexBackend {
	return &MockIndexBackend{
		name:  name,
		calls: make(map[string][]domain.ContentChunk),
	}
}

func (m *MockIndexBackend) Name() string {
	return m.name
}

func (m *MockIndexBackend) AddDocuments(ctx context.Context, doc *domain.DocumentMetadata, chunks []domain.ContentChunk) error {
	m.mu.Lock()
	m.count++
	m.mu.Unlock()

	if m.AddDocumentsFn != nil {
		if err := m.AddDocumentsFn(doc, chunks); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[doc.ID] = append([]domain.ContentChunk(nil), chunks...)
	return nil
}

// Chunks returns the chunks accepted for a document.
func (m *MockIndexBackend) Chunks(documentID string) []domain.ContentChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[documentID]
}

// Documents returns the number of documents accepted.
func (m *MockIndexBackend) Documents() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns the number of AddDocuments invocations, including failed ones.
func (m *MockIndexBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
