package driven

import (
	"context"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// DocumentStore handles document record persistence (PostgreSQL)
type DocumentStore interface {
	// Save creates or updates a document record
	Save(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// ExistsByFilename reports whether a document with this original filename was ingested
	ExistsByFilename(ctx context.Context, filename string) (bool, error)

	// List returns documents ordered by creation time, newest first
	List(ctx context.Context, limit, offset int) ([]*domain.Document, error)

	// Delete deletes a document record
	Delete(ctx context.Context, id string) error

	// Ping checks the store is reachable
	Ping(ctx context.Context) error
}
