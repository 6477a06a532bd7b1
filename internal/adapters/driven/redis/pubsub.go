package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.Publisher    = (*PubSub)(nil)
	_ driven.Subscriber   = (*PubSub)(nil)
	_ driven.Subscription = (*subscription)(nil)
)

// DefaultChannel is the channel new documents are announced on.
const DefaultChannel = "documents"

// PubSub is the notification bridge between the upload path and the worker.
// Delivery is at-most-once: a message published while no worker is
// subscribed is lost.
type PubSub struct {
	client  redis.UniversalClient
	channel string
	buffer  int
	logger  *slog.Logger
}

// PubSubConfig holds configuration for the notification bridge.
type PubSubConfig struct {
	Channel    string // default: documents
	BufferSize int    // Messages buffered per subscription (default: 64)
	Logger     *slog.Logger
}

// NewPubSub creates a notification bridge on client.
func NewPubSub(client redis.UniversalClient, cfg PubSubConfig) *PubSub {
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 64
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PubSub{
		client:  client,
		channel: channel,
		buffer:  buffer,
		logger:  logger.With("channel", channel),
	}
}

// Channel returns the channel name.
func (p *PubSub) Channel() string {
	return p.channel
}

// Publish announces a stored document.
func (p *PubSub) Publish(ctx context.Context, meta *domain.DocumentMetadata) error {
	payload, err := domain.EncodeMetadata(meta)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	if receivers == 0 {
		p.logger.Warn("notification published with no subscribers", "document_id", meta.ID)
	}
	return nil
}

// Subscribe subscribes to the channel and waits for the server to confirm.
func (p *PubSub) Subscribe(ctx context.Context) (driven.Subscription, error) {
	ps := p.client.Subscribe(ctx, p.channel)

	// The first reply is the subscribe confirmation.
	reply, err := ps.Receive(ctx)
	if err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", p.channel, err)
	}
	if _, ok := reply.(*redis.Subscription); !ok {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: unexpected reply %T", p.channel, reply)
	}

	s := &subscription{
		ps:     ps,
		ch:     make(chan domain.NotificationMessage, p.buffer),
		done:   make(chan struct{}),
		logger: p.logger,
	}
	s.ch <- controlMessage(reply.(*redis.Subscription))

	go s.receive()

	p.logger.Info("subscribed to notification channel")
	return s, nil
}

// Ping checks Redis connectivity.
func (p *PubSub) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

type subscription struct {
	ps     *redis.PubSub
	ch     chan domain.NotificationMessage
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func (s *subscription) Messages() <-chan domain.NotificationMessage {
	return s.ch
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// receive pumps replies into ch until the subscription is closed.
// go-redis reconnects and resubscribes on transient errors.
func (s *subscription) receive() {
	defer close(s.ch)

	ctx := context.Background()
	for {
		reply, err := s.ps.Receive(ctx)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, redis.ErrClosed) {
				return
			}
			s.logger.Warn("notification receive failed", "error", err)
			select {
			case <-time.After(time.Second):
			case <-s.done:
				return
			}
			continue
		}

		var msg domain.NotificationMessage
		switch r := reply.(type) {
		case *redis.Message:
			msg = domain.NotificationMessage{
				Kind:    domain.MessageKindData,
				Channel: r.Channel,
				Payload: []byte(r.Payload),
			}
		case *redis.Subscription:
			msg = controlMessage(r)
		default:
			continue
		}

		select {
		case s.ch <- msg:
		case <-s.done:
			return
		}
	}
}

func controlMessage(sub *redis.Subscription) domain.NotificationMessage {
	return domain.NotificationMessage{
		Kind:    domain.MessageKindControl,
		Channel: sub.Channel,
		Payload: []byte(sub.Kind),
	}
}
