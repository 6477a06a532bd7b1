package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.DocumentService = (*DocumentService)(nil)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// DocumentService implements the ingestion entrypoint used by direct uploads
// and by connectors.
type DocumentService struct {
	blobs     driven.BlobStore
	store     driven.DocumentStore
	publisher driven.Publisher
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(blobs driven.BlobStore, store driven.DocumentStore, publisher driven.Publisher, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{
		blobs:     blobs,
		store:     store,
		publisher: publisher,
		logger:    logger,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Upload stores the file, records it and announces it on the notification channel.
func (s *DocumentService) Upload(ctx context.Context, req driving.UploadRequest) (*domain.Document, error) {
	filename := strings.TrimSpace(req.Filename)
	if filename == "" || req.Body == nil {
		return nil, fmt.Errorf("%w: filename and body are required", domain.ErrInvalidInput)
	}

	id := s.newID()
	doc := &domain.Document{
		DocumentMetadata: domain.DocumentMetadata{
			ID:          id,
			StorageKey:  domain.StorageKey(id, filename),
			ContentType: domain.DetectMIMEType(req.ContentType, filename),
			Filename:    filename,
		},
		CreatedAt: s.now().UTC(),
	}

	counter := &countingReader{r: req.Body}
	if err := s.blobs.Put(ctx, doc.StorageKey, counter, req.Size, doc.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}
	doc.SizeBytes = counter.n

	if err := s.store.Save(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(ctx, doc.StorageKey); delErr != nil {
			s.logger.Warn("failed to remove orphaned blob", "storage_key", doc.StorageKey, "error", delErr)
		}
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	s.announce(ctx, &doc.DocumentMetadata)

	s.logger.Info("document uploaded",
		"document_id", doc.ID,
		"filename", doc.Filename,
		"content_type", doc.ContentType,
		"size_bytes", doc.SizeBytes,
	)

	return doc, nil
}

// announce publishes the notification. Delivery is fire-and-forget, so a
// failure is logged and the document can be re-announced through Reindex.
func (s *DocumentService) announce(ctx context.Context, meta *domain.DocumentMetadata) {
	if err := s.publisher.Publish(ctx, meta); err != nil {
		s.logger.Error("failed to publish document notification",
			"document_id", meta.ID,
			"error", err,
		)
	}
}

// Exists reports whether a document with this filename was already uploaded.
func (s *DocumentService) Exists(ctx context.Context, filename string) (bool, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return false, fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}
	return s.store.ExistsByFilename(ctx, filename)
}

// Get retrieves a document by ID
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.store.Get(ctx, id)
}

// List returns documents, newest first
func (s *DocumentService) List(ctx context.Context, limit, offset int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, limit, offset)
}

// Open returns the document record and a reader over its blob.
func (s *DocumentService) Open(ctx context.Context, id string) (*domain.Document, io.ReadCloser, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return doc, body, nil
}

// Delete removes the blob and then the record.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	s.logger.Info("document deleted", "document_id", id)
	return nil
}

// Reindex publishes the notification for an existing document again.
// Unlike Upload, a publish failure is returned to the caller.
func (s *DocumentService) Reindex(ctx context.Context, id string) error {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, &doc.DocumentMetadata); err != nil {
		return fmt.Errorf("%w: failed to publish document notification: %w", domain.ErrServiceUnavailable, err)
	}

	s.logger.Info("document re-announced", "document_id", id)
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
