package parser

import (
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// DocconvExtractor converts office and markup formats to plain text and
// chunks the result line by line.
type DocconvExtractor struct {
	// Readability enables docconv's main-content detection for HTML.
	Readability bool
}

// Extract implements Extractor.
func (e *DocconvExtractor) Extract(ctx context.Context, in Input, out chan<- domain.ContentChunk) error {
	res, err := docconv.Convert(in.Body, in.MIMEType, e.Readability)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", in.MIMEType, err)
	}
	if res.Error != "" {
		return fmt.Errorf("failed to convert %s: %s", in.MIMEType, res.Error)
	}

	return emitLines(ctx, strings.NewReader(res.Body), in.Filename, DefaultMaxLineSize, out)
}
