package mocks

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// MockConnector serves a fixed set of pages keyed by page token.
// Page tokens are "", "1", "2", ... in order.
type MockConnector struct {
	name  string
	pages [][]domain.RemoteItem

	mu       sync.Mutex
	fetched  []string
	listed   int
	inFlight atomic.Int64
	peak     atomic.Int64

	// FetchDelay holds each fetch open so concurrency can be observed.
	FetchDelay time.Duration

	ListFn  func(cursor domain.ConnectorCursor) (*domain.ListingPage, error)
	FetchFn func(item domain.RemoteItem) (*domain.FetchedItem, error)
}

// NewMockConnector creates a connector serving pages in order.
func NewMockConnector(name string, pages ...[]domain.RemoteItem) *MockConnector {
	return &MockConnector{name: name, pages: pages}
}

func (m *MockConnector) Name() string {
	return m.name
}

func (m *MockConnector) List(ctx context.Context, cursor domain.ConnectorCursor) (*domain.ListingPage, error) {
	m.mu.Lock()
	m.listed++
	m.mu.Unlock()

	if m.ListFn != nil {
		return m.ListFn(cursor)
	}

	idx := 0
	if cursor.PageToken != "" {
		n, err := strconv.Atoi(cursor.PageToken)
		if err != nil {
			return nil, fmt.Errorf("bad page token %q", cursor.PageToken)
		}
		idx = n
	}
	if idx >= len(m.pages) {
		return &domain.ListingPage{}, nil
	}

	page := &domain.ListingPage{Items: m.pages[idx]}
	if idx+1 < len(m.pages) {
		page.NextPageToken = strconv.Itoa(idx + 1)
	}
	return page, nil
}

func (m *MockConnector) Fetch(ctx context.Context, item domain.RemoteItem) (*domain.FetchedItem, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.peak.Load()
		if n <= peak || m.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if m.FetchDelay > 0 {
		time.Sleep(m.FetchDelay)
	}

	m.mu.Lock()
	m.fetched = append(m.fetched, item.ID)
	m.mu.Unlock()

	if m.FetchFn != nil {
		return m.FetchFn(item)
	}
	return &domain.FetchedItem{
		Name:        item.Name,
		ContentType: item.ContentType,
		Body:        io.NopCloser(strings.NewReader("content of " + item.Name)),
	}, nil
}

// Fetched returns the IDs fetched so far.
func (m *MockConnector) Fetched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetched...)
}

// ListCalls returns the number of List invocations.
func (m *MockConnector) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listed
}

// PeakConcurrency returns the largest number of simultaneous fetches seen.
func (m *MockConnector) PeakConcurrency() int {
	return int(m.peak.Load())
}

// MockExpandingConnector is a MockConnector whose listed items are
// containers resolved through Expand.
type MockExpandingConnector struct {
	*MockConnector

	mu       sync.Mutex
	children map[string][]domain.RemoteItem

	ExpandFn func(item domain.RemoteItem) ([]domain.RemoteItem, error)
}

// NewMockExpandingConnector creates an expanding connector. children maps
// container ID to its items.
func NewMockExpandingConnector(name string, children map[string][]domain.RemoteItem, pages ...[]domain.RemoteItem) *MockExpandingConnector {
	return &MockExpandingConnector{
		MockConnector: NewMockConnector(name, pages...),
		children:      children,
	}
}

func (m *MockExpandingConnector) Expand(ctx context.Context, item domain.RemoteItem) ([]domain.RemoteItem, error) {
	if m.ExpandFn != nil {
		return m.ExpandFn(item)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.children[item.ID], nil
}
