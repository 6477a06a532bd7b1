package domain

import (
	"strings"
	"time"
)

// DocumentMetadata is the compact description of a stored blob that travels
// over the notification channel. It is immutable once published.
type DocumentMetadata struct {
	ID          string `json:"id"`
	StorageKey  string `json:"storage_key"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
}

// Validate checks the fields the ingestion pipeline depends on.
func (m *DocumentMetadata) Validate() error {
	if m.ID == "" || m.StorageKey == "" {
		return ErrInvalidInput
	}
	return nil
}

// StorageKey builds the object key for a document: "<id>_<filename>".
func StorageKey(id, filename string) string {
	return id + "_" + sanitizeFilename(filename)
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return strings.TrimSpace(name)
}

// Document is the persisted record of an uploaded document.
type Document struct {
	DocumentMetadata
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// ContentChunk is one unit of extracted text.
// Position is the 1-based line number for line-oriented formats and the
// 1-based page index for paginated formats.
type ContentChunk struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
	Source   string `json:"source"`
}

// BackendResult records the outcome of handing a chunk set to one backend.
type BackendResult struct {
	Backend string        `json:"backend"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Succeeded reports whether the backend accepted the chunks.
func (r BackendResult) Succeeded() bool {
	return r.Error == ""
}

// IngestResult summarises one processed document.
// A document counts as processed even when every backend failed.
type IngestResult struct {
	DocumentID string          `json:"document_id"`
	Chunks     int             `json:"chunks"`
	Backends   []BackendResult `json:"backends"`
	Duration   time.Duration   `json:"duration"`
}

// FailedBackends returns the number of backends that rejected the chunks.
func (r *IngestResult) FailedBackends() int {
	n := 0
	for _, b := range r.Backends {
		if !b.Succeeded() {
			n++
		}
	}
	return n
}
