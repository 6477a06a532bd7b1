// Package pgvector stores embedded content chunks in a PostgreSQL table
// using the pgvector extension.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IndexBackend = (*Backend)(nil)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Config configures one pgvector collection.
type Config struct {
	// Name identifies the backend in logs and ingest results.
	Name string

	// Table holds the chunks of this collection. One table per embedding
	// model, since vector sizes differ.
	Table string

	Embedder driven.EmbeddingService
	Logger   *slog.Logger
}

// Backend implements driven.IndexBackend on a pgvector table.
type Backend struct {
	pool     *pgxpool.Pool
	name     string
	table    string
	embedder driven.EmbeddingService
	logger   *slog.Logger
}

// Connect opens a pgx pool for the given URL.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	return pool, nil
}

// NewBackend validates cfg and creates a backend. It does not touch the
// database; call EnsureSchema once at startup.
func NewBackend(pool *pgxpool.Pool, cfg Config) (*Backend, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("%w: pgvector backend %q needs an embedding service", domain.ErrInvalidInput, cfg.Name)
	}
	if !tableNamePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("%w: invalid table name %q", domain.ErrInvalidInput, cfg.Table)
	}
	if cfg.Name == "" {
		cfg.Name = "pgvector:" + cfg.Table
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		pool:     pool,
		name:     cfg.Name,
		table:    cfg.Table,
		embedder: cfg.Embedder,
		logger:   logger.With("backend", cfg.Name),
	}, nil
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) ident() string {
	return pgx.Identifier{b.table}.Sanitize()
}

// EnsureSchema creates the vector extension and the collection table.
// The column is dimension-typed when the embedder reports its size.
func (b *Backend) EnsureSchema(ctx context.Context) error {
	column := "vector"
	if d := b.embedder.Dimensions(); d > 0 {
		column = fmt.Sprintf("vector(%d)", d)
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			document_id  TEXT NOT NULL,
			position     INTEGER NOT NULL,
			storage_key  TEXT NOT NULL,
			source       TEXT NOT NULL,
			content      TEXT NOT NULL,
			embedding    %s NOT NULL,
			model        TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (document_id, position)
		)`, b.ident(), column),
	}
	for _, stmt := range stmts {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create %s schema: %w", b.table, err)
		}
	}
	return nil
}

// AddDocuments embeds the chunks and replaces the document's rows in one
// transaction, so a document is either fully indexed or not at all.
func (b *Backend) AddDocuments(ctx context.Context, doc *domain.DocumentMetadata, chunks []domain.ContentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(chunks))
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, b.ident()), doc.ID); err != nil {
		return fmt.Errorf("failed to clear previous chunks: %w", err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (document_id, position, storage_key, source, content, embedding, model)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, b.ident())

	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(insert, doc.ID, c.Position, doc.StorageKey, c.Source, c.Text, pgvector.NewVector(vectors[i]), b.embedder.Model())
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}

	b.logger.Debug("document indexed", "document_id", doc.ID, "chunks", len(chunks))
	return nil
}

// ChunkCount returns the number of stored chunks for a document.
func (b *Backend) ChunkCount(ctx context.Context, documentID string) (int, error) {
	var n int
	err := b.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE document_id = $1`, b.ident()), documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Ping checks the pool.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.pool.Ping(ctx); err != nil {
		return errors.Join(domain.ErrServiceUnavailable, err)
	}
	return nil
}
