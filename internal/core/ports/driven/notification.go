package driven

import (
	"context"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// Publisher announces newly stored documents on the notification channel.
type Publisher interface {
	Publish(ctx context.Context, meta *domain.DocumentMetadata) error
}

// Subscriber opens a subscription on the notification channel.
// A failure to subscribe is a startup failure and must be treated as fatal.
type Subscriber interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription delivers notification messages until closed.
// The Messages channel is closed when the subscription ends.
type Subscription interface {
	Messages() <-chan domain.NotificationMessage
	Close() error
}
