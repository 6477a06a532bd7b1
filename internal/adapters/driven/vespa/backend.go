// Package vespa feeds content chunks into a Vespa content cluster.
package vespa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IndexBackend = (*Backend)(nil)

// Backend implements driven.IndexBackend using the Vespa document API.
// Each chunk becomes one Vespa document with id "<document id>-<position>",
// so re-ingesting a document overwrites its previous chunks.
type Backend struct {
	baseURL    string
	namespace  string
	docType    string
	httpClient *http.Client
	embedder   driven.EmbeddingService
	logger     *slog.Logger
}

// Config holds Vespa connection configuration
type Config struct {
	// BaseURL is the Vespa container endpoint (e.g., http://localhost:8080)
	BaseURL string

	Namespace    string // default: infovault
	DocumentType string // default: chunk

	// Timeout for HTTP requests
	Timeout time.Duration

	// Embedder is optional. Without it chunks are fed for text ranking only.
	Embedder driven.EmbeddingService

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Namespace:    "infovault",
		DocumentType: "chunk",
		Timeout:      30 * time.Second,
	}
}

// NewBackend creates a new Vespa-backed index backend.
func NewBackend(cfg Config) *Backend {
	if cfg.Namespace == "" {
		cfg.Namespace = "infovault"
	}
	if cfg.DocumentType == "" {
		cfg.DocumentType = "chunk"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		namespace:  cfg.Namespace,
		docType:    cfg.DocumentType,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		embedder:   cfg.Embedder,
		logger:     logger.With("backend", "vespa"),
	}
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return "vespa"
}

// vespaDocument represents a document in Vespa format
type vespaDocument struct {
	Fields vespaFields `json:"fields"`
}

type vespaFields struct {
	DocumentID  string    `json:"document_id"`
	StorageKey  string    `json:"storage_key"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Source      string    `json:"source"`
	Content     string    `json:"content"`
	Position    int       `json:"chunk_position"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// AddDocuments feeds every chunk of one document. It stops at the first
// rejected chunk.
func (b *Backend) AddDocuments(ctx context.Context, doc *domain.DocumentMetadata, chunks []domain.ContentChunk) error {
	var embeddings [][]float32
	if b.embedder != nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		var err error
		embeddings, err = b.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(embeddings) != len(chunks) {
			return fmt.Errorf("embedding count mismatch: got %d, want %d", len(embeddings), len(chunks))
		}
	}

	for i, chunk := range chunks {
		fields := vespaFields{
			DocumentID:  doc.ID,
			StorageKey:  doc.StorageKey,
			Filename:    doc.Filename,
			ContentType: doc.ContentType,
			Source:      chunk.Source,
			Content:     chunk.Text,
			Position:    chunk.Position,
		}
		if embeddings != nil {
			fields.Embedding = embeddings[i]
		}
		if err := b.feed(ctx, chunkID(doc.ID, chunk.Position), fields); err != nil {
			return fmt.Errorf("failed to feed chunk %d: %w", chunk.Position, err)
		}
	}

	b.logger.Debug("document fed", "document_id", doc.ID, "chunks", len(chunks))
	return nil
}

func chunkID(documentID string, position int) string {
	return fmt.Sprintf("%s-%d", documentID, position)
}

func (b *Backend) documentURL(id string) string {
	return fmt.Sprintf("%s/document/v1/%s/%s/docid/%s", b.baseURL, b.namespace, b.docType, url.PathEscape(id))
}

func (b *Backend) feed(ctx context.Context, id string, fields vespaFields) error {
	body, err := json.Marshal(vespaDocument{Fields: fields})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.documentURL(id), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vespa feed failed: %s - %s", resp.Status, string(respBody))
	}
	return nil
}

// HealthCheck verifies the container is up.
func (b *Backend) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/state/v1/health", nil)
	if err != nil {
		return err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vespa health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vespa unhealthy: %s", resp.Status)
	}
	return nil
}
