// Package text_test tests the sentence-boundary chunker.
package text_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/book-expert/audiobook-service/internal/tts/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	chunker := text.NewChunker(100)

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "three sentences",
			input:    "One fish. Two fish! Red fish?",
			expected: []string{"One fish.", "Two fish!", "Red fish?"},
		},
		{
			name:     "trailing text without terminal punctuation",
			input:    "First sentence. And then it just stops",
			expected: []string{"First sentence.", "And then it just stops"},
		},
		{
			name:     "repeated punctuation",
			input:    "Really?! Yes... definitely.",
			expected: []string{"Really?!", "Yes...", "definitely."},
		},
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, chunker.SplitSentences(testCase.input))
		})
	}
}

func TestSplit_GreedyAccumulation(t *testing.T) {
	t.Parallel()

	// Each sentence is 9 characters; two fit within 19 (9 + 1 + 9).
	input := "Aaaa bbb. Cccc ddd. Eeee fff."
	chunker := text.NewChunker(19)

	chunks := chunker.Split(input)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Aaaa bbb. Cccc ddd.", chunks[0])
	assert.Equal(t, "Eeee fff.", chunks[1])
}

func TestSplit_OversizedSentenceEmittedWhole(t *testing.T) {
	t.Parallel()

	long := "This single sentence is far longer than the configured chunk bound."
	input := "Short one. " + long + " Short two."
	chunker := text.NewChunker(20)

	chunks := chunker.Split(input)

	require.Len(t, chunks, 3)
	assert.Equal(t, long, chunks[1], "oversized sentence must not be split mid-sentence")
}

func TestSplit_RoundTripPreservesContent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"One fish. Two fish! Red fish? Blue fish.",
		"A sentence\nwith   odd\twhitespace. Another one!  And a third.",
		"No terminal punctuation at all",
		"Single.",
	}

	for _, input := range inputs {
		for _, maxChars := range []int{5, 17, 80, 5000} {
			chunker := text.NewChunker(maxChars)
			chunks := chunker.Split(input)

			joined := strings.Join(chunks, " ")
			assert.Equal(t, normalize(input), normalize(joined),
				"round-trip failed for bound %d on %q", maxChars, input)

			for _, chunk := range chunks {
				assert.NotEmpty(t, chunk)
			}
		}
	}
}

func TestSplit_SizeBound(t *testing.T) {
	t.Parallel()

	const maxChars = 40

	input := "The quick brown fox jumps over the dog. Pack my box with five " +
		"dozen jugs. Sphinx of black quartz, judge my vow. How vexingly " +
		"quick daft zebras jump!"
	chunker := text.NewChunker(maxChars)

	for _, chunk := range chunker.Split(input) {
		// A chunk may exceed the bound only when it is one oversized sentence.
		if len(chunk) > maxChars {
			sentences := chunker.SplitSentences(chunk)
			assert.Len(t, sentences, 1,
				"oversized chunk %q must be a single sentence", chunk)
		}
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	t.Parallel()

	chunker := text.NewChunker(100)

	assert.Nil(t, chunker.Split(""))
	assert.Nil(t, chunker.Split("   \n\t  "))
}
