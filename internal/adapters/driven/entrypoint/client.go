// Package entrypoint is an HTTP client for the document upload API, used by
// connectors running in a separate process from the API server.
package entrypoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IngestionEntrypoint = (*Client)(nil)

// Config configures the entrypoint client.
type Config struct {
	// BaseURL of the API server, e.g. http://localhost:8080
	BaseURL string

	// ExistsTimeout bounds the existence check. Uploads are bounded by
	// the caller's context only, since payloads can be large.
	ExistsTimeout time.Duration

	Logger *slog.Logger
}

// Client implements driven.IngestionEntrypoint over HTTP.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	existsTimeout time.Duration
	logger        *slog.Logger
}

// NewClient creates a new entrypoint client.
func NewClient(cfg Config) *Client {
	if cfg.ExistsTimeout <= 0 {
		cfg.ExistsTimeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:    &http.Client{},
		existsTimeout: cfg.ExistsTimeout,
		logger:        logger,
	}
}

// Exists asks the API whether a document with this filename was already ingested.
func (c *Client) Exists(ctx context.Context, filename string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.existsTimeout)
	defer cancel()

	endpoint := c.baseURL + "/api/v1/documents/exists?filename=" + url.QueryEscape(filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, responseError(resp)
	}

	var body struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode exists response: %w", err)
	}
	return body.Exists, nil
}

// Submit uploads the item as multipart form field "file". The body is
// streamed through a pipe, never held in memory. Submit closes item.Body.
func (c *Client) Submit(ctx context.Context, item *domain.FetchedItem) (string, error) {
	defer item.Body.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(mw, item))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/documents", pr)
	if err != nil {
		pr.CloseWithError(err)
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	// Unblocks the writer if the request ended before the body was consumed.
	pr.CloseWithError(errors.New("request finished"))
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", item.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}

	var doc domain.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}

	c.logger.Debug("item submitted", "filename", item.Name, "document_id", doc.ID)
	return doc.ID, nil
}

func writeMultipart(mw *multipart.Writer, item *domain.FetchedItem) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(item.Name)))
	contentType := item.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, item.Body); err != nil {
		return fmt.Errorf("failed to stream %s: %w", item.Name, err)
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// responseError maps an API error response onto domain sentinels.
func responseError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}

	var sentinel error
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		sentinel = domain.ErrInvalidInput
	case resp.StatusCode == http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		sentinel = domain.ErrAlreadyExists
	case resp.StatusCode >= 500:
		sentinel = domain.ErrServiceUnavailable
	default:
		return fmt.Errorf("entrypoint returned %s: %s", resp.Status, body.Error)
	}
	return fmt.Errorf("%w: entrypoint returned %s: %s", sentinel, resp.Status, body.Error)
}
