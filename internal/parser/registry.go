// Package parser turns stored blobs into content chunks. Extraction strategies
// are selected from a table keyed by domain.ContentType.
package parser

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ContentParser = (*Registry)(nil)

// DefaultBufferSize bounds the channel between an extractor and its consumer.
const DefaultBufferSize = 32

// Input is the blob handed to an extractor.
type Input struct {
	Body     io.Reader
	Filename string
	MIMEType string
}

// Extractor produces chunks for one content type.
// Extract sends chunks in ascending position order and returns when the
// input is exhausted. It must not close out.
type Extractor interface {
	Extract(ctx context.Context, in Input, out chan<- domain.ContentChunk) error
}

// Registry maps content types to extractors.
// A type with no registered extractor is rejected with ErrUnsupportedContentType.
type Registry struct {
	mu         sync.RWMutex
	extractors map[domain.ContentType]Extractor
	bufferSize int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[domain.ContentType]Extractor),
		bufferSize: DefaultBufferSize,
	}
}

// DefaultRegistry creates a registry with the built-in extractors.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(domain.ContentTypeText, &LineExtractor{})
	r.Register(domain.ContentTypePDF, &PDFExtractor{})

	office := &DocconvExtractor{}
	r.Register(domain.ContentTypeWordDocument, office)
	r.Register(domain.ContentTypeOpenDocument, office)
	r.Register(domain.ContentTypeRTF, office)
	r.Register(domain.ContentTypeHTML, office)

	return r
}

// Register sets the extractor for a content type, replacing any previous one.
// Registering for ContentTypeUnsupported is ignored.
func (r *Registry) Register(ct domain.ContentType, e Extractor) {
	if ct == domain.ContentTypeUnsupported {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[ct] = e
}

// SetBufferSize changes the capacity of the chunk channel for subsequent parses.
func (r *Registry) SetBufferSize(n int) {
	if n <= 0 {
		n = DefaultBufferSize
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bufferSize = n
}

// Get returns the extractor for a content type.
func (r *Registry) Get(ct domain.ContentType) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[ct]
	return e, ok
}

// List returns the supported content types in declaration order.
func (r *Registry) List() []domain.ContentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.ContentType, 0, len(r.extractors))
	for ct := range r.extractors {
		types = append(types, ct)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Parse resolves the document's content type and starts extraction.
// Unsupported types fail immediately with a *domain.ParseError.
func (r *Registry) Parse(ctx context.Context, body io.Reader, meta *domain.DocumentMetadata) (driven.ChunkStream, error) {
	ct := domain.ResolveContentType(meta.ContentType, meta.Filename)

	extractor, ok := r.Get(ct)
	if !ok {
		return nil, domain.NewParseError(meta.Filename, meta.ContentType, domain.ErrUnsupportedContentType)
	}

	r.mu.RLock()
	size := r.bufferSize
	r.mu.RUnlock()

	in := Input{
		Body:     body,
		Filename: meta.Filename,
		MIMEType: domain.DetectMIMEType(meta.ContentType, meta.Filename),
	}

	s := &Stream{ch: make(chan domain.ContentChunk, size)}
	s.g.Go(func() error {
		defer close(s.ch)
		if err := extractor.Extract(ctx, in, s.ch); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			var pe *domain.ParseError
			if errors.As(err, &pe) {
				return err
			}
			return domain.NewParseError(meta.Filename, meta.ContentType, err)
		}
		return nil
	})

	return s, nil
}

// Stream is the chunk sequence produced by one Parse call.
type Stream struct {
	ch   chan domain.ContentChunk
	g    errgroup.Group
	once sync.Once
	err  error
}

// C returns the chunk channel. It is closed when extraction ends.
func (s *Stream) C() <-chan domain.ContentChunk {
	return s.ch
}

// Err waits for extraction to end and returns its error.
// Call it after C has been drained.
func (s *Stream) Err() error {
	s.once.Do(func() {
		s.err = s.g.Wait()
	})
	return s.err
}

func emit(ctx context.Context, out chan<- domain.ContentChunk, chunk domain.ContentChunk) error {
	select {
	case out <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
