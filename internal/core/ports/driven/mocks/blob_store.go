package mocks

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// MockBlobStore is an in-memory BlobStore.
type MockBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	types map[string]string

	PutFn    func(key string) error
	GetFn    func(key string) (io.ReadCloser, error)
	DeleteFn func(key string) error
	ExistsFn func() error
}

// NewMockBlobStore creates an empty MockBlobStore.
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{
		blobs: make(map[string][]byte),
		types: make(map[string]string),
	}
}

func (m *MockBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.PutFn != nil {
		if err := m.PutFn(key); err != nil {
			return err
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	m.types[key] = contentType
	return nil
}

func (m *MockBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.GetFn != nil {
		return m.GetFn(key)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	delete(m.types, key)
	return nil
}

func (m *MockBlobStore) Exists(ctx context.Context) error {
	if m.ExistsFn != nil {
		return m.ExistsFn()
	}
	return nil
}

// Seed stores a blob directly.
func (m *MockBlobStore) Seed(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
}

// Blob returns the stored bytes for key.
func (m *MockBlobStore) Blob(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	return data, ok
}

// Len returns the number of stored blobs.
func (m *MockBlobStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
