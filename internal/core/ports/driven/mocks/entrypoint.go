package mocks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// MockEntrypoint is an in-memory IngestionEntrypoint.
type MockEntrypoint struct {
	mu        sync.Mutex
	existing  map[string]bool
	submitted []string
	exists    int

	ExistsFn func(filename string) (bool, error)
	SubmitFn func(item *domain.FetchedItem) error
}

// NewMockEntrypoint creates an entrypoint that already holds the given filenames.
func NewMockEntrypoint(existing ...string) *MockEntrypoint {
	m := &MockEntrypoint{existing: make(map[string]bool)}
	for _, name := range existing {
		m.existing[name] = true
	}
	return m
}

func (m *MockEntrypoint) Exists(ctx context.Context, filename string) (bool, error) {
	m.mu.Lock()
	m.exists++
	m.mu.Unlock()

	if m.ExistsFn != nil {
		return m.ExistsFn(filename)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existing[filename], nil
}

func (m *MockEntrypoint) Submit(ctx context.Context, item *domain.FetchedItem) (string, error) {
	defer item.Body.Close()

	if m.SubmitFn != nil {
		if err := m.SubmitFn(item); err != nil {
			return "", err
		}
	}
	if _, err := io.Copy(io.Discard, item.Body); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, item.Name)
	m.existing[item.Name] = true
	return fmt.Sprintf("doc-%d", len(m.submitted)), nil
}

// Submitted returns the names submitted so far.
func (m *MockEntrypoint) Submitted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.submitted...)
}

// ExistsCalls returns how many existence checks were made.
func (m *MockEntrypoint) ExistsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exists
}
