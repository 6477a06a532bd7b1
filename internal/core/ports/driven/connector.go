package driven

import (
	"context"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// Connector enumerates a paginated remote source and downloads its items.
type Connector interface {
	// Name identifies the connector, e.g. "gmail" or "drive".
	Name() string

	// List returns the page addressed by cursor.PageToken.
	List(ctx context.Context, cursor domain.ConnectorCursor) (*domain.ListingPage, error)

	// Fetch downloads one item. The returned body is streamed, not buffered, where the source allows it.
	Fetch(ctx context.Context, item domain.RemoteItem) (*domain.FetchedItem, error)
}

// ItemExpander is implemented by connectors whose listing yields containers
// (mail messages) holding the fetchable items (attachments).
type ItemExpander interface {
	Expand(ctx context.Context, item domain.RemoteItem) ([]domain.RemoteItem, error)
}

// IngestionEntrypoint is the upload path connectors forward into.
type IngestionEntrypoint interface {
	// Exists reports whether a document with this filename was already ingested.
	Exists(ctx context.Context, filename string) (bool, error)

	// Submit uploads the item and returns the assigned document ID.
	// Submit closes item.Body.
	Submit(ctx context.Context, item *domain.FetchedItem) (string, error)
}
