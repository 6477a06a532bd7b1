package driving

import (
	"context"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// IngestionService runs the fetch, parse and index pipeline for one document.
type IngestionService interface {
	// Ingest processes the document described by meta.
	// Blob and parse failures are returned; backend failures are recorded in the result.
	Ingest(ctx context.Context, meta *domain.DocumentMetadata) (*domain.IngestResult, error)
}
