// Package extract converts uploaded book files into plain narration text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Extraction errors.
var (
	// ErrUnsupportedFormat is returned for file types the extractor
	// cannot convert to text.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyDocument is returned when extraction yields no text.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrNotUTF8 is returned when a text upload is not valid UTF-8.
	ErrNotUTF8 = errors.New("document is not valid UTF-8 text")
)

// Result holds the extracted text and its basic statistics.
type Result struct {
	Text      string
	WordCount int
	CharCount int
	Truncated bool
}

// Extractor converts uploaded files into normalized plain text, capping the
// output at maxChars characters.
type Extractor struct {
	maxChars int
}

// NewExtractor creates an extractor. A non-positive maxChars disables the
// cap.
func NewExtractor(maxChars int) *Extractor {
	return &Extractor{maxChars: maxChars}
}

// Extract converts the uploaded file named filename into plain text. Only
// plain-text formats are converted in-process; binary document formats are
// rejected so the upload handler can report them synchronously.
func (e *Extractor) Extract(filename string, data []byte) (Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".txt", ".md", ".markdown":
		return e.extractPlainText(data)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func (e *Extractor) extractPlainText(data []byte) (Result, error) {
	if !utf8.Valid(data) {
		return Result{}, ErrNotUTF8
	}

	text := normalize(string(data))
	if text == "" {
		return Result{}, ErrEmptyDocument
	}

	truncated := false

	if e.maxChars > 0 && utf8.RuneCountInString(text) > e.maxChars {
		text = truncateRunes(text, e.maxChars)
		truncated = true
	}

	return Result{
		Text:      text,
		WordCount: len(strings.Fields(text)),
		CharCount: utf8.RuneCountInString(text),
		Truncated: truncated,
	}, nil
}

// normalize collapses line endings and strips control characters that would
// confuse downstream sentence splitting.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")

	return strings.TrimSpace(text)
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	return strings.TrimSpace(string(runes[:limit]))
}
