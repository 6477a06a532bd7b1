package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService fetches a stored blob, parses it and fans the chunks out
// to every configured index backend.
type IngestionService struct {
	blobs          driven.BlobStore
	parser         driven.ContentParser
	backends       []driven.IndexBackend
	pool           *ants.Pool
	backendTimeout time.Duration
	logger         *slog.Logger
}

// IngestionConfig holds configuration for the ingestion service.
type IngestionConfig struct {
	BlobStore      driven.BlobStore
	Parser         driven.ContentParser
	Backends       []driven.IndexBackend
	Logger         *slog.Logger
	BackendTimeout time.Duration // Per-backend deadline (default: 5m)
	PoolSize       int           // Concurrent backend calls (default: number of backends)
}

// NewIngestionService creates a new ingestion service.
// Call Close to release the backend worker pool.
func NewIngestionService(cfg IngestionConfig) (*IngestionService, error) {
	if cfg.BlobStore == nil || cfg.Parser == nil {
		return nil, fmt.Errorf("%w: blob store and parser are required", domain.ErrInvalidInput)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.BackendTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	size := cfg.PoolSize
	if size <= 0 {
		size = len(cfg.Backends)
	}
	if size <= 0 {
		size = 1
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend pool: %w", err)
	}

	return &IngestionService{
		blobs:          cfg.BlobStore,
		parser:         cfg.Parser,
		backends:       cfg.Backends,
		pool:           pool,
		backendTimeout: timeout,
		logger:         logger,
	}, nil
}

// Backends returns the names of the configured backends.
func (s *IngestionService) Backends() []string {
	names := make([]string, len(s.backends))
	for i, b := range s.backends {
		names[i] = b.Name()
	}
	return names
}

// Ingest processes one document.
// A failed blob fetch or parse returns an error and nothing is indexed.
// Backend failures are isolated: each one is logged and recorded in the
// result while the remaining backends still receive the full chunk set.
func (s *IngestionService) Ingest(ctx context.Context, meta *domain.DocumentMetadata) (*domain.IngestResult, error) {
	start := time.Now()
	logger := s.logger.With("document_id", meta.ID, "storage_key", meta.StorageKey)

	body, err := s.blobs.Get(ctx, meta.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blob %s: %w", meta.StorageKey, err)
	}
	defer body.Close()

	stream, err := s.parser.Parse(ctx, body, meta)
	if err != nil {
		return nil, err
	}

	chunks, err := driven.CollectChunks(stream)
	if err != nil {
		return nil, err
	}

	result := &domain.IngestResult{
		DocumentID: meta.ID,
		Chunks:     len(chunks),
	}

	if len(chunks) == 0 {
		logger.Warn("no content extracted")
		result.Duration = time.Since(start)
		return result, nil
	}

	result.Backends = s.fanOut(ctx, meta, chunks, logger)
	result.Duration = time.Since(start)

	logger.Info("document ingested",
		"chunks", result.Chunks,
		"backends", len(result.Backends),
		"failed_backends", result.FailedBackends(),
		"duration", result.Duration,
	)

	return result, nil
}

// Close releases the backend worker pool.
func (s *IngestionService) Close() {
	s.pool.Release()
}

func (s *IngestionService) fanOut(ctx context.Context, meta *domain.DocumentMetadata, chunks []domain.ContentChunk, logger *slog.Logger) []domain.BackendResult {
	results := make([]domain.BackendResult, len(s.backends))
	done := make(chan struct{}, len(s.backends))

	for i, backend := range s.backends {
		i, backend := i, backend
		task := func() {
			defer func() { done <- struct{}{} }()
			results[i] = s.index(ctx, backend, meta, chunks)
		}
		if err := s.pool.Submit(task); err != nil {
			results[i] = domain.BackendResult{Backend: backend.Name(), Error: err.Error()}
			done <- struct{}{}
		}
	}

	for range s.backends {
		<-done
	}

	for _, r := range results {
		if !r.Succeeded() {
			logger.Error("index backend failed", "backend", r.Backend, "error", r.Error)
		}
	}

	return results
}

func (s *IngestionService) index(ctx context.Context, backend driven.IndexBackend, meta *domain.DocumentMetadata, chunks []domain.ContentChunk) (result domain.BackendResult) {
	start := time.Now()
	result.Backend = backend.Name()

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		result.Elapsed = time.Since(start)
	}()

	ctx, cancel := context.WithTimeout(ctx, s.backendTimeout)
	defer cancel()

	if err := backend.AddDocuments(ctx, meta, chunks); err != nil {
		result.Error = err.Error()
	}
	return result
}

// IsSkippable reports whether an ingest error is a per-document condition
// (missing blob, unparseable content) rather than an infrastructure outage.
func IsSkippable(err error) bool {
	var pe *domain.ParseError
	return errors.As(err, &pe) || errors.Is(err, domain.ErrNotFound)
}
