package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// testdata/pages.pdf has three pages: text, no text, text.
func openFixture(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to open fixture: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestPDFExtractor_OneChunkPerNonEmptyPage(t *testing.T) {
	in := Input{Body: openFixture(t, "pages.pdf"), Filename: "report.pdf", MIMEType: "application/pdf"}

	chunks, err := extractAll(t, &PDFExtractor{}, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.ContentChunk{
		{Text: "Hello page one", Position: 1, Source: "report.pdf"},
		{Text: "Third page text", Position: 3, Source: "report.pdf"},
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, c := range chunks {
		if c != want[i] {
			t.Errorf("chunk %d: expected %+v, got %+v", i, want[i], c)
		}
	}
}

func TestParse_PDFPositionsAscend(t *testing.T) {
	meta := &domain.DocumentMetadata{ID: "d", StorageKey: "d_report.pdf", ContentType: "application/pdf", Filename: "report.pdf"}

	stream, err := DefaultRegistry().Parse(context.Background(), openFixture(t, "pages.pdf"), meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks, err := driven.CollectChunks(stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks for a pdf with text")
	}
	last := 0
	for _, c := range chunks {
		if c.Position <= last {
			t.Errorf("positions not ascending: %d after %d", c.Position, last)
		}
		if c.Text == "" || c.Source != "report.pdf" {
			t.Errorf("unexpected chunk %+v", c)
		}
		last = c.Position
	}
}

func TestPDFExtractor_Corrupt(t *testing.T) {
	_, err := extractAll(t, &PDFExtractor{}, Input{Body: strings.NewReader("definitely not a pdf"), Filename: "a.pdf"})
	if err == nil {
		t.Fatal("expected error for corrupt pdf")
	}
}

func TestParse_CorruptPDFIsParseError(t *testing.T) {
	meta := &domain.DocumentMetadata{ID: "d", StorageKey: "d_a.pdf", ContentType: "application/pdf", Filename: "a.pdf"}

	stream, err := DefaultRegistry().Parse(context.Background(), strings.NewReader("%PDF-1.4 garbage"), meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = driven.CollectChunks(stream)
	var pe *domain.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.ContentType != "application/pdf" {
		t.Errorf("expected content type application/pdf, got %s", pe.ContentType)
	}
}
