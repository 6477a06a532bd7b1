package driving

import (
	"context"
	"io"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// UploadRequest carries one file into the ingestion entrypoint.
type UploadRequest struct {
	Filename    string
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.Reader
}

// DocumentService is the ingestion entrypoint: it stores blobs, records
// metadata and announces new documents to the worker.
type DocumentService interface {
	// Upload stores the file, records it and publishes a notification.
	// Storage and record failures are returned; a failed publish is only logged.
	Upload(ctx context.Context, req UploadRequest) (*domain.Document, error)

	// Exists reports whether a document with this filename was already uploaded
	Exists(ctx context.Context, filename string) (bool, error)

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// List returns documents, newest first
	List(ctx context.Context, limit, offset int) ([]*domain.Document, error)

	// Open returns the document record and a reader over its blob
	Open(ctx context.Context, id string) (*domain.Document, io.ReadCloser, error)

	// Delete removes the blob and the record
	Delete(ctx context.Context, id string) error

	// Reindex publishes the notification for an existing document again
	Reindex(ctx context.Context, id string) error
}
