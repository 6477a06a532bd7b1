package driven

import (
	"context"
	"io"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// ChunkStream is a lazy, finite, non-restartable sequence of chunks.
// C is closed when extraction ends; Err then reports why it ended.
type ChunkStream interface {
	C() <-chan domain.ContentChunk
	Err() error
}

// CollectChunks drains a stream. Chunks are only returned when extraction succeeded.
func CollectChunks(stream ChunkStream) ([]domain.ContentChunk, error) {
	var chunks []domain.ContentChunk
	for chunk := range stream.C() {
		chunks = append(chunks, chunk)
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// ContentParser turns a blob into content chunks according to its declared type.
type ContentParser interface {
	Parse(ctx context.Context, body io.Reader, meta *domain.DocumentMetadata) (ChunkStream, error)
}
