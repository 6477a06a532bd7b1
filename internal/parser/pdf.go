package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// PDFExtractor emits one chunk per non-empty page, positioned by page index.
// Pages without extractable text (scans, images) are skipped.
type PDFExtractor struct{}

// Extract implements Extractor.
func (e *PDFExtractor) Extract(ctx context.Context, in Input, out chan<- domain.ContentChunk) (err error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return fmt.Errorf("failed to read pdf: %w", err)
	}

	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("corrupt pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to open pdf: %w", err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if err := emit(ctx, out, domain.ContentChunk{Text: text, Position: i, Source: in.Filename}); err != nil {
			return err
		}
	}

	return nil
}
