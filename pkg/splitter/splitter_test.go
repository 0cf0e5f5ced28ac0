package splitter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortTextIsOneChunk(t *testing.T) {
	got := New(1500, 20).Split("  The quick brown fox.  ")
	assert.Equal(t, []string{"The quick brown fox."}, got)
}

func TestSplitEmpty(t *testing.T) {
	assert.Empty(t, New(100, 10).Split(""))
	assert.Empty(t, New(100, 10).Split("\n\n  \n"))
}

func TestSplitRespectsSizeAndOverlap(t *testing.T) {
	words := make([]string, 200)
	for i := range words {
		words[i] = "word" + strings.Repeat("x", i%5)
	}
	text := strings.Join(words, " ")

	chunks := New(60, 15).Split(text)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 60)
	}
	// consecutive chunks share the tail of the previous one
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		last := prevWords[len(prevWords)-1]
		assert.True(t, strings.HasPrefix(chunks[i], last) || strings.Contains(chunks[i], last),
			"chunk %d should start with overlap from chunk %d", i, i-1)
	}
	// nothing is lost
	assert.Contains(t, chunks[len(chunks)-1], words[len(words)-1])
}

func TestSplitPrefersParagraphs(t *testing.T) {
	text := strings.Repeat("a", 30) + "\n\n" + strings.Repeat("b", 30)
	assert.Equal(t, []string{strings.Repeat("a", 30), strings.Repeat("b", 30)}, New(40, 0).Split(text))
}

func TestSplitCountsRunes(t *testing.T) {
	text := strings.Repeat("ข", 25)
	chunks := New(10, 0).Split(text)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("ข", 10), chunks[0])
	assert.Equal(t, strings.Repeat("ข", 5), chunks[2])
}
