package driven

import (
	"context"
	"io"
)

// BlobStore is the single object-storage capability used across the pipeline.
type BlobStore interface {
	// Put stores the stream under key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get opens the blob stored under key.
	// Returns domain.ErrNotFound if the key does not exist. The caller must close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks that the configured bucket is reachable.
	Exists(ctx context.Context) error
}
