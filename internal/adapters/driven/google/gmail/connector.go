// Package gmail enumerates mail messages and downloads their attachments.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/api/gmail/v1"

	"github.com/thewatergategroups/info-vault/internal/adapters/driven/google"
	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.Connector    = (*Connector)(nil)
	_ driven.ItemExpander = (*Connector)(nil)
)

// DefaultExcludedExtensions are never fetched from mail.
var DefaultExcludedExtensions = []string{".exe", ".bat", ".ics"}

// Unlimited disables the per-sweep message limit.
const Unlimited = -1

// Config holds Gmail connector configuration.
type Config struct {
	// UserID is the mailbox to read (default: "me").
	UserID string
	// Query is a Gmail search query (optional).
	Query string
	// LabelIDs limits listing to messages with all of these labels (optional).
	LabelIDs []string
	// MaxResults is used when the cursor does not set a page size (default: 500).
	MaxResults int64
	// FetchLimit stops a sweep once this many messages were listed.
	// Unlimited (-1) or 0 means no limit.
	FetchLimit int
	// Limiter overrides the default Gmail rate limiter.
	Limiter *google.RateLimiter
	Logger  *slog.Logger
}

// Connector implements driven.Connector and driven.ItemExpander for Gmail.
// Listed items are messages; Expand turns a message into its attachments.
type Connector struct {
	svc        *gmail.Service
	userID     string
	query      string
	labelIDs   []string
	maxResults int64
	fetchLimit int
	limiter    *google.RateLimiter
	logger     *slog.Logger

	mu     sync.Mutex
	listed int
}

// New creates a Gmail connector on an authenticated service.
func New(svc *gmail.Service, cfg Config) *Connector {
	if cfg.UserID == "" {
		cfg.UserID = "me"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 500
	}
	if cfg.FetchLimit < 0 {
		cfg.FetchLimit = 0
	}
	if cfg.Limiter == nil {
		cfg.Limiter = google.NewRateLimiter(google.ServiceGmail)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		svc:        svc,
		userID:     cfg.UserID,
		query:      cfg.Query,
		labelIDs:   cfg.LabelIDs,
		maxResults: cfg.MaxResults,
		fetchLimit: cfg.FetchLimit,
		limiter:    cfg.Limiter,
		logger:     logger.With("connector", "gmail"),
	}
}

// Name identifies the connector.
func (c *Connector) Name() string {
	return "gmail"
}

// List returns one page of message IDs. An empty page token starts a new
// sweep and resets the fetch limit counter.
func (c *Connector) List(ctx context.Context, cursor domain.ConnectorCursor) (*domain.ListingPage, error) {
	c.mu.Lock()
	if cursor.PageToken == "" {
		c.listed = 0
	}
	c.mu.Unlock()

	pageSize := cursor.PageSize
	if pageSize <= 0 {
		pageSize = c.maxResults
	}

	call := c.svc.Users.Messages.List(c.userID).
		MaxResults(pageSize).
		Context(ctx)
	if c.query != "" {
		call = call.Q(c.query)
	}
	if len(c.labelIDs) > 0 {
		call = call.LabelIds(c.labelIDs...)
	}
	if cursor.PageToken != "" {
		call = call.PageToken(cursor.PageToken)
	}

	var resp *gmail.ListMessagesResponse
	err := c.limiter.Do(ctx, func() error {
		var err error
		resp, err = call.Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	page := &domain.ListingPage{NextPageToken: resp.NextPageToken}
	for _, m := range resp.Messages {
		page.Items = append(page.Items, domain.RemoteItem{ID: m.Id})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.listed += len(page.Items)
	if c.fetchLimit > 0 && c.listed >= c.fetchLimit {
		if over := c.listed - c.fetchLimit; over > 0 {
			page.Items = page.Items[:len(page.Items)-over]
		}
		page.NextPageToken = ""
		c.logger.Info("fetch limit reached", "limit", c.fetchLimit)
	}
	return page, nil
}

// Expand loads the full message and returns one item per attachment.
func (c *Connector) Expand(ctx context.Context, message domain.RemoteItem) ([]domain.RemoteItem, error) {
	var msg *gmail.Message
	err := c.limiter.Do(ctx, func() error {
		var err error
		msg, err = c.svc.Users.Messages.Get(c.userID, message.ID).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", message.ID, err)
	}
	return Attachments(msg), nil
}

// Attachments walks the message parts recursively and returns every part
// that has both a filename and an attachment ID.
func Attachments(msg *gmail.Message) []domain.RemoteItem {
	var items []domain.RemoteItem
	var walk func(part *gmail.MessagePart)
	walk = func(part *gmail.MessagePart) {
		if part == nil {
			return
		}
		if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
			items = append(items, domain.RemoteItem{
				ID:          part.Body.AttachmentId,
				Name:        part.Filename,
				ContentType: part.MimeType,
				ParentID:    msg.Id,
				Size:        part.Body.Size,
			})
		}
		for _, child := range part.Parts {
			walk(child)
		}
	}
	walk(msg.Payload)
	return items
}

// Fetch downloads one attachment. The API returns attachment data inline
// as base64url, so the body is decoded from memory.
func (c *Connector) Fetch(ctx context.Context, item domain.RemoteItem) (*domain.FetchedItem, error) {
	if item.ParentID == "" {
		return nil, fmt.Errorf("%w: attachment %s has no message ID", domain.ErrInvalidInput, item.ID)
	}

	var body *gmail.MessagePartBody
	err := c.limiter.Do(ctx, func() error {
		var err error
		body, err = c.svc.Users.Messages.Attachments.Get(c.userID, item.ParentID, item.ID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s: %w", item.ID, err)
	}

	data, err := decodeAttachment(body.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment %s: %w", item.ID, err)
	}

	return &domain.FetchedItem{
		Name:        item.Name,
		ContentType: item.ContentType,
		Size:        int64(len(data)),
		Body:        io.NopCloser(bytes.NewReader(data)),
	}, nil
}

// decodeAttachment accepts base64url with or without padding.
func decodeAttachment(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}
