package parser

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// DefaultMaxLineSize is the longest line the line extractor accepts.
const DefaultMaxLineSize = 1024 * 1024

// ErrInvalidEncoding is returned for text that is not valid UTF-8 or that
// carries NUL bytes.
var ErrInvalidEncoding = errors.New("invalid utf-8 encoding")

// LineExtractor emits one chunk per non-empty line.
// Position is the 1-based line number in the original text, so blank lines
// still advance it.
type LineExtractor struct {
	MaxLineSize int
}

// Extract implements Extractor.
func (e *LineExtractor) Extract(ctx context.Context, in Input, out chan<- domain.ContentChunk) error {
	return emitLines(ctx, in.Body, in.Filename, e.maxLineSize(), out)
}

func (e *LineExtractor) maxLineSize() int {
	if e.MaxLineSize <= 0 {
		return DefaultMaxLineSize
	}
	return e.MaxLineSize
}

func emitLines(ctx context.Context, r io.Reader, source string, maxLine int, out chan<- domain.ContentChunk) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !utf8.ValidString(line) || strings.IndexByte(line, 0) != -1 {
			return ErrInvalidEncoding
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if err := emit(ctx, out, domain.ContentChunk{Text: text, Position: lineNo, Source: source}); err != nil {
			return err
		}
	}
	return scanner.Err()
}
