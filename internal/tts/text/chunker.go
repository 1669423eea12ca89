// Package text provides text normalization and chunking for the synthesis
// pipeline.
//
// The chunker splits a book's text into bounded-size segments at sentence
// boundaries so that each segment can be synthesized as one unit without
// incoherent mid-sentence audio cuts.
package text

import (
	"regexp"
	"strings"
)

// Regex patterns for text splitting.
const (
	sentenceEndRegexPattern = `[.!?]+(?:\s+|\z)`
	whitespaceRegexPattern  = `\s+`
)

// Chunker splits text into sentence-aligned chunks of bounded size.
type Chunker struct {
	// Precompiled regex patterns for performance.
	sentenceEndPattern *regexp.Regexp
	whitespacePattern  *regexp.Regexp
	maxChunkChars      int
}

// NewChunker creates a chunker that bounds chunks at maxChunkChars.
// A single sentence longer than the bound is emitted as its own oversized
// chunk rather than split mid-sentence.
func NewChunker(maxChunkChars int) *Chunker {
	return &Chunker{
		sentenceEndPattern: regexp.MustCompile(sentenceEndRegexPattern),
		whitespacePattern:  regexp.MustCompile(whitespaceRegexPattern),
		maxChunkChars:      maxChunkChars,
	}
}

// NormalizeWhitespace collapses all whitespace runs to single spaces and
// trims the ends. Applied before splitting so chunk sizes are measured on
// clean text.
func (c *Chunker) NormalizeWhitespace(text string) string {
	return strings.TrimSpace(c.whitespacePattern.ReplaceAllString(text, " "))
}

// SplitSentences splits text into sentence units at terminal punctuation
// (`.`, `!`, `?`) followed by whitespace. Trailing text without terminal
// punctuation is returned as a final sentence.
func (c *Chunker) SplitSentences(text string) []string {
	var sentences []string

	previousEnd := 0

	for _, loc := range c.sentenceEndPattern.FindAllStringIndex(text, -1) {
		sentence := strings.TrimSpace(text[previousEnd:loc[1]])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}

		previousEnd = loc[1]
	}

	remainder := strings.TrimSpace(text[previousEnd:])
	if remainder != "" {
		sentences = append(sentences, remainder)
	}

	return sentences
}

// Split splits text into ordered chunks. Sentences are accumulated
// greedily into a chunk until adding the next sentence would exceed the
// configured bound, at which point a new chunk starts. Space-joining the
// returned chunks reproduces all sentence content in original order, and
// no chunk is ever empty.
func (c *Chunker) Split(text string) []string {
	normalized := c.NormalizeWhitespace(text)
	if normalized == "" {
		return nil
	}

	sentences := c.SplitSentences(normalized)

	var (
		chunks  []string
		current strings.Builder
	)

	for _, sentence := range sentences {
		if current.Len() == 0 {
			current.WriteString(sentence)

			continue
		}

		// +1 accounts for the joining space.
		if current.Len()+1+len(sentence) > c.maxChunkChars {
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(sentence)

			continue
		}

		current.WriteString(" ")
		current.WriteString(sentence)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}
