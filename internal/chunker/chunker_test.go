package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmpty(t *testing.T) {
	c := New(100, 20)
	assert.Nil(t, c.Split("doc", ""))
	assert.Nil(t, c.Split("doc", "   \n\n  \n"))
}

func TestSplitSingleChunk(t *testing.T) {
	c := New(100, 20)
	chunks := c.Split("uksi/2024/1", "A short regulation.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short regulation.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 19, chunks[0].End)
	assert.Equal(t, "uksi/2024/1:0", chunks[0].ID())
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	text := strings.Join([]string{
		"First paragraph about planning permission.",
		"Second paragraph about enforcement notices.",
		"Third paragraph about appeals procedure.",
	}, "\n\n")

	c := New(95, 0)
	chunks := c.Split("doc", text)
	require.Len(t, chunks, 2)
	// Paragraphs one and two fit together; three starts a new chunk.
	assert.Contains(t, chunks[0].Text, "First paragraph")
	assert.Contains(t, chunks[0].Text, "Second paragraph")
	assert.Contains(t, chunks[1].Text, "Third paragraph")
	assert.NotContains(t, chunks[1].Text, "Second paragraph")
}

func TestSplitOversizeParagraphSplitsAtSentences(t *testing.T) {
	text := "One sentence here. Another sentence follows. A third sentence ends it."
	c := New(50, 0)
	chunks := c.Split("doc", text)
	require.GreaterOrEqual(t, len(chunks), 2)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 50)
		// No chunk starts or ends mid-sentence.
		assert.True(t, strings.HasSuffix(ch.Text, "."), "chunk %q should end at a sentence", ch.Text)
	}
}

func TestSplitHardSplitsOversizeSentence(t *testing.T) {
	text := strings.Repeat("x", 250)
	c := New(100, 0)
	chunks := c.Split("doc", text)
	require.Len(t, chunks, 3)
	assert.Equal(t, 100, len(chunks[0].Text))
	assert.Equal(t, 100, len(chunks[1].Text))
	assert.Equal(t, 50, len(chunks[2].Text))
}

func TestSplitOverlap(t *testing.T) {
	text := "Alpha sentence one. Beta sentence two. Gamma sentence three. Delta sentence four."
	c := New(45, 25)
	chunks := c.Split("doc", text)
	require.GreaterOrEqual(t, len(chunks), 2)
	for i := 1; i < len(chunks); i++ {
		// Consecutive chunks overlap: the next starts before the previous ends.
		assert.Less(t, chunks[i].Start, chunks[i-1].End,
			"chunk %d should overlap chunk %d", i, i-1)
	}
}

func TestSplitIndexesSequential(t *testing.T) {
	text := strings.Repeat("Sentence number one here. ", 40)
	chunks := New(120, 30).Split("doc", text)
	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, "doc", ch.DocumentID)
	}
}

func TestSplitOffsetsSliceOriginalText(t *testing.T) {
	text := "Paragraph one with words.\n\nParagraph two with more words.\n\nParagraph three."
	runes := []rune(text)
	chunks := New(40, 10).Split("doc", text)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, string(runes[ch.Start:ch.End]), ch.Text)
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("The planning authority may grant permission. Conditions may be attached. ", 30)
	c := New(200, 40)
	a := c.Split("doc", text)
	b := c.Split("doc", text)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i])
	}
}

func TestSplitRespectsMaxSize(t *testing.T) {
	text := strings.Repeat("Some moderately sized sentence appears right here. ", 60)
	for _, ch := range New(150, 30).Split("doc", text) {
		assert.LessOrEqual(t, ch.End-ch.Start, 150)
	}
}

func TestNewClampsBadValues(t *testing.T) {
	c := New(10, 50)
	chunks := c.Split("doc", strings.Repeat("word ", 30))
	assert.NotEmpty(t, chunks)
}
