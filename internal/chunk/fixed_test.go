package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragx/pkg/tokenizer"
)

func words(prefix string, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s%d", prefix, i)
	}
	return sb.String()
}

func TestNewFixedValidatesOverlap(t *testing.T) {
	_, err := NewFixed(FixedOptions{MaxTokens: 100, Overlap: 100})
	require.Error(t, err)

	_, err = NewFixed(FixedOptions{MaxTokens: 100, Overlap: -1})
	require.Error(t, err)

	_, err = NewFixed(FixedOptions{MaxTokens: 0, Overlap: 0})
	require.Error(t, err)

	_, err = NewFixed(FixedOptions{MaxTokens: 100, Overlap: 0})
	require.NoError(t, err)
}

func TestFixedChunkBoundsAndIDs(t *testing.T) {
	c, err := NewFixed(FixedOptions{MaxTokens: 50, Overlap: 10, ModelName: "m"})
	require.NoError(t, err)

	text := words("alpha", 120)
	chunks, err := c.Chunk([]Page{{PageNo: 1, Text: text}})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	tok := tokenizer.Default().Get("m")
	for i, ch := range chunks {
		assert.LessOrEqual(t, tok.Count(ch.Text), 50, "chunk %d over budget", i)
		assert.Equal(t, i+1, ch.ChunkID)
		assert.Equal(t, 1, ch.Page)
	}
}

func TestFixedChunkOverlapBetweenWindows(t *testing.T) {
	c, err := NewFixed(FixedOptions{MaxTokens: 20, Overlap: 5, ModelName: "m"})
	require.NoError(t, err)

	text := words("tok", 60)
	chunks, err := c.Chunk([]Page{{PageNo: 1, Text: text}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	tok := tokenizer.Default().Get("m")
	for i := 1; i < len(chunks); i++ {
		prev := tok.Tokenize(chunks[i-1].Text)
		tailStart := prev[len(prev)-5].Start
		tail := chunks[i-1].Text[tailStart:prev[len(prev)-1].End]
		assert.True(t, strings.HasPrefix(chunks[i].Text, tail),
			"chunk %d does not start with previous tail %q", i, tail)
	}
}

func TestFixedChunkCarriesPageTail(t *testing.T) {
	c, err := NewFixed(FixedOptions{MaxTokens: 30, Overlap: 8, ModelName: "m"})
	require.NoError(t, err)

	page1 := words("one", 25)
	page2 := words("two", 25)
	chunks, err := c.Chunk([]Page{
		{PageNo: 1, Text: page1},
		{PageNo: 2, Text: page2},
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	// the first chunk of page 2 starts with the tail of page 1
	var firstPage2 string
	for _, ch := range chunks {
		if ch.Page == 2 {
			firstPage2 = ch.Text
			break
		}
	}
	require.NotEmpty(t, firstPage2)
	assert.Contains(t, firstPage2, "one24")
	assert.Contains(t, firstPage2, "two0")
}

func TestFixedChunkSkipsEmptyPages(t *testing.T) {
	c, err := NewFixed(FixedOptions{MaxTokens: 30, Overlap: 0, ModelName: "m"})
	require.NoError(t, err)

	chunks, err := c.Chunk([]Page{
		{PageNo: 1, Text: ""},
		{PageNo: 2, Text: "hello world"},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, chunks[0].Page)
	assert.Equal(t, 1, chunks[0].ChunkID)
}

func TestFixedChunkShortDocumentSingleChunk(t *testing.T) {
	c, err := NewFixed(FixedOptions{MaxTokens: 400, Overlap: 80, ModelName: "m"})
	require.NoError(t, err)

	chunks, err := c.Chunk([]Page{{PageNo: 1, Text: "just a few words here"}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "just a few words here", chunks[0].Text)
}
