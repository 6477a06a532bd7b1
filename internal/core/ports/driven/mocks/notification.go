package mocks

import (
	"context"
	"sync"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// MockPublisher records published metadata.
type MockPublisher struct {
	mu        sync.Mutex
	published []domain.DocumentMetadata

	PublishFn func(meta *domain.DocumentMetadata) error
}

// NewMockPublisher creates a MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, meta *domain.DocumentMetadata) error {
	if m.PublishFn != nil {
		if err := m.PublishFn(meta); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, *meta)
	return nil
}

// Published returns a copy of everything published so far.
func (m *MockPublisher) Published() []domain.DocumentMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DocumentMetadata(nil), m.published...)
}

// MockSubscriber hands out MockSubscriptions.
type MockSubscriber struct {
	mu            sync.Mutex
	subscriptions []*MockSubscription

	SubscribeFn func() error
}

// NewMockSubscriber creates a MockSubscriber.
func NewMockSubscriber() *MockSubscriber {
	return &MockSubscriber{}
}

func (m *MockSubscriber) Subscribe(ctx context.Context) (driven.Subscription, error) {
	if m.SubscribeFn != nil {
		if err := m.SubscribeFn(); err != nil {
			return nil, err
		}
	}
	sub := NewMockSubscription()
	m.mu.Lock()
	m.subscriptions = append(m.subscriptions, sub)
	m.mu.Unlock()
	return sub, nil
}

// Latest returns the most recent subscription, or nil.
func (m *MockSubscriber) Latest() *MockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.subscriptions) == 0 {
		return nil
	}
	return m.subscriptions[len(m.subscriptions)-1]
}

// MockSubscription is a subscription fed by Send.
type MockSubscription struct {
	ch     chan domain.NotificationMessage
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

// NewMockSubscription creates an open subscription.
func NewMockSubscription() *MockSubscription {
	return &MockSubscription{ch: make(chan domain.NotificationMessage, 16)}
}

func (s *MockSubscription) Messages() <-chan domain.NotificationMessage {
	return s.ch
}

// Send delivers a message to the subscriber. It is a no-op after Close.
func (s *MockSubscription) Send(msg domain.NotificationMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ch <- msg
}

// SendMetadata delivers a data message carrying meta.
func (s *MockSubscription) SendMetadata(meta *domain.DocumentMetadata) error {
	payload, err := domain.EncodeMetadata(meta)
	if err != nil {
		return err
	}
	s.Send(domain.NotificationMessage{Kind: domain.MessageKindData, Channel: "documents", Payload: payload})
	return nil
}

func (s *MockSubscription) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	return nil
}

// Closed reports whether Close was called.
func (s *MockSubscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
