package driven

import (
	"context"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// IndexBackend receives the full chunk set of a document.
type IndexBackend interface {
	// Name identifies the backend in logs and results.
	Name() string

	// AddDocuments indexes the chunks extracted from doc.
	AddDocuments(ctx context.Context, doc *domain.DocumentMetadata, chunks []domain.ContentChunk) error
}
