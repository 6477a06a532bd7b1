package domain

import (
	"io"
	"path/filepath"
	"strings"
	"time"
)

// ConnectorCursor tracks a position within one enumeration sweep.
// It is never persisted; every sweep starts from the first page.
type ConnectorCursor struct {
	PageToken string
	PageSize  int64
	Filters   []string
}

// RemoteItem is a single entry returned by a connector listing.
// For mail, listed items are messages that expand into attachment items.
type RemoteItem struct {
	ID          string
	Name        string
	ContentType string
	ParentID    string
	Size        int64
}

// Extension returns the lower-cased file extension of the item name.
func (i RemoteItem) Extension() string {
	return strings.ToLower(filepath.Ext(i.Name))
}

// ListingPage is one page of a paginated listing.
// An empty NextPageToken marks the last page.
type ListingPage struct {
	Items         []RemoteItem
	NextPageToken string
}

// FetchedItem is a downloaded payload ready to forward to the ingestion entrypoint.
// The receiver must close Body.
type FetchedItem struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// SweepResult summarises one full enumeration pass.
type SweepResult struct {
	Connector string        `json:"connector"`
	Pages     int           `json:"pages"`
	Listed    int           `json:"listed"`
	Expanded  int           `json:"expanded"`
	Filtered  int           `json:"filtered"`
	Existing  int           `json:"existing"`
	Forwarded int           `json:"forwarded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// SweepLimits bounds the concurrency of one sweep.
type SweepLimits struct {
	Items      int // Concurrent exists-check, fetch and forward tasks
	Containers int // Concurrent container expansions, e.g. mail messages (0: enumerator default)
}

// ItemFilter decides whether a listed item should be fetched.
type ItemFilter func(item RemoteItem) bool

// ExcludeExtensions rejects items without a name and items whose extension
// is in the deny-list. Extensions are compared case-insensitively and may be
// given with or without a leading dot.
func ExcludeExtensions(exts []string) ItemFilter {
	denied := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		denied[ext] = true
	}

	return func(item RemoteItem) bool {
		if strings.TrimSpace(item.Name) == "" {
			return false
		}
		return !denied[item.Extension()]
	}
}

// AcceptAll is a filter that only rejects unnamed items.
func AcceptAll(item RemoteItem) bool {
	return strings.TrimSpace(item.Name) != ""
}
