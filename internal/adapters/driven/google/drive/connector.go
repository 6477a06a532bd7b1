// Package drive enumerates and downloads the user's own Google Drive files.
package drive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"

	"github.com/thewatergategroups/info-vault/internal/adapters/driven/google"
	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Connector = (*Connector)(nil)

// Google Workspace MIME types. Documents, sheets and slides are exported as
// PDF; other workspace types have no downloadable form and are skipped.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"

	workspacePrefix = "application/vnd.google-apps."
	exportMimeType  = "application/pdf"
)

// DefaultQuery lists non-folder, non-trashed files owned by the user.
const DefaultQuery = "'me' in owners and mimeType!='application/vnd.google-apps.folder' and trashed=false"

// DefaultExcludedExtensions are never fetched from Drive.
var DefaultExcludedExtensions = []string{".exe", ".bat", ".tmp"}

const listFields = "nextPageToken, files(id, name, mimeType, size)"

// Config holds Google Drive connector configuration.
type Config struct {
	// Query is the Drive search expression (default: DefaultQuery).
	Query string
	// PageSize is used when the cursor does not set one (default: 100).
	PageSize int64
	// Limiter overrides the default Drive rate limiter.
	Limiter *google.RateLimiter
	Logger  *slog.Logger
}

// Connector implements driven.Connector for Google Drive.
type Connector struct {
	svc      *drive.Service
	query    string
	pageSize int64
	limiter  *google.RateLimiter
	logger   *slog.Logger
}

// New creates a Drive connector on an authenticated service.
func New(svc *drive.Service, cfg Config) *Connector {
	if cfg.Query == "" {
		cfg.Query = DefaultQuery
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Limiter == nil {
		cfg.Limiter = google.NewRateLimiter(google.ServiceDrive)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		svc:      svc,
		query:    cfg.Query,
		pageSize: cfg.PageSize,
		limiter:  cfg.Limiter,
		logger:   logger.With("connector", "drive"),
	}
}

// Name identifies the connector.
func (c *Connector) Name() string {
	return "drive"
}

// List returns one page of files.
func (c *Connector) List(ctx context.Context, cursor domain.ConnectorCursor) (*domain.ListingPage, error) {
	pageSize := cursor.PageSize
	if pageSize <= 0 {
		pageSize = c.pageSize
	}

	call := c.svc.Files.List().
		Q(c.query).
		PageSize(pageSize).
		Fields(listFields).
		Context(ctx)
	if cursor.PageToken != "" {
		call = call.PageToken(cursor.PageToken)
	}

	var resp *drive.FileList
	err := c.limiter.Do(ctx, func() error {
		var err error
		resp, err = call.Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list drive files: %w", err)
	}

	page := &domain.ListingPage{
		Items:         make([]domain.RemoteItem, 0, len(resp.Files)),
		NextPageToken: resp.NextPageToken,
	}
	for _, f := range resp.Files {
		item, ok := toRemoteItem(f)
		if !ok {
			c.logger.Debug("skipping non-downloadable file", "file_id", f.Id, "mime_type", f.MimeType)
			continue
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

func toRemoteItem(f *drive.File) (domain.RemoteItem, bool) {
	item := domain.RemoteItem{
		ID:          f.Id,
		Name:        f.Name,
		ContentType: f.MimeType,
		Size:        f.Size,
	}
	if !strings.HasPrefix(f.MimeType, workspacePrefix) {
		return item, true
	}
	if !isExportable(f.MimeType) {
		return item, false
	}
	// Exported files are named after their export format so dedup and
	// extension filters see what is actually ingested.
	if !strings.HasSuffix(strings.ToLower(item.Name), ".pdf") {
		item.Name += ".pdf"
	}
	item.Size = 0
	return item, true
}

func isExportable(mimeType string) bool {
	switch mimeType {
	case MimeTypeGoogleDoc, MimeTypeGoogleSheet, MimeTypeGoogleSlides:
		return true
	default:
		return false
	}
}

// Fetch streams the file content. Workspace files are exported as PDF.
func (c *Connector) Fetch(ctx context.Context, item domain.RemoteItem) (*domain.FetchedItem, error) {
	if isExportable(item.ContentType) {
		resp, err := c.download(ctx, func() (*http.Response, error) {
			return c.svc.Files.Export(item.ID, exportMimeType).Context(ctx).Download()
		})
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", item.ID, err)
		}
		return &domain.FetchedItem{
			Name:        item.Name,
			ContentType: exportMimeType,
			Size:        -1,
			Body:        resp.Body,
		}, nil
	}

	resp, err := c.download(ctx, func() (*http.Response, error) {
		return c.svc.Files.Get(item.ID).Context(ctx).Download()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", item.ID, err)
	}

	size := item.Size
	if resp.ContentLength > 0 {
		size = resp.ContentLength
	}
	if size <= 0 {
		size = -1
	}
	return &domain.FetchedItem{
		Name:        item.Name,
		ContentType: item.ContentType,
		Size:        size,
		Body:        resp.Body,
	}, nil
}

// download runs a media request under the rate limiter. The response body
// is returned unread.
func (c *Connector) download(ctx context.Context, call func() (*http.Response, error)) (*http.Response, error) {
	var resp *http.Response
	err := c.limiter.Do(ctx, func() error {
		var err error
		resp, err = call()
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
