package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragx/pkg/tokenizer"
)

func mdChunker(t *testing.T, opts MarkdownOptions) *MarkdownChunker {
	t.Helper()
	if opts.SoftTarget == 0 {
		opts.SoftTarget = 60
	}
	if opts.HardLimit == 0 {
		opts.HardLimit = 100
	}
	if opts.ModelName == "" {
		opts.ModelName = "m"
	}
	c, err := NewMarkdown(opts)
	require.NoError(t, err)
	return c
}

func TestNewMarkdownValidatesInvariant(t *testing.T) {
	_, err := NewMarkdown(MarkdownOptions{SoftTarget: 100, HardLimit: 100, Overlap: 10})
	require.Error(t, err)

	_, err = NewMarkdown(MarkdownOptions{SoftTarget: 100, HardLimit: 150, Overlap: 100})
	require.Error(t, err)

	_, err = NewMarkdown(MarkdownOptions{SoftTarget: 100, HardLimit: 150, Overlap: 20})
	require.NoError(t, err)
}

func TestMarkdownStartsNewChunkOnHeading(t *testing.T) {
	c := mdChunker(t, MarkdownOptions{StartNewOnHeading: true})

	text := "# Intro\n\nfirst paragraph here\n\n# Setup\n\nsecond paragraph here"
	chunks, err := c.Chunk([]Page{{PageNo: 1, Text: text}})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Contains(t, chunks[0].Text, "Intro")
	assert.Contains(t, chunks[0].Text, "first paragraph")
	assert.Contains(t, chunks[1].Text, "Setup")
	assert.NotContains(t, chunks[1].Text, "first paragraph")

	assert.Equal(t, []string{"Intro"}, chunks[0].SectionPath)
	assert.Equal(t, []string{"Setup"}, chunks[1].SectionPath)
	assert.Equal(t, "setup", chunks[1].Anchor)
}

func TestMarkdownSectionPathNesting(t *testing.T) {
	c := mdChunker(t, MarkdownOptions{StartNewOnHeading: true})

	text := "# Guide\n\nintro text\n\n## Install\n\ninstall text"
	chunks, err := c.Chunk([]Page{{PageNo: 1, Text: text}})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, []string{"Guide", "Install"}, chunks[1].SectionPath)
	assert.Equal(t, "guide/install", chunks[1].Anchor)
}

func TestMarkdownGreedyAccumulationRespectsSoftTarget(t *testing.T) {
	c := mdChunker(t, MarkdownOptions{SoftTarget: 30, HardLimit: 100})

	var paras []string
	for i := 0; i < 6; i++ {
		paras = append(paras, words(fmt.Sprintf("p%d w", i), 12))
	}
	text := strings.Join(paras, "\n\n")

	chunks, err := c.Chunk([]Page{{PageNo: 1, Text: text}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	tok := tokenizer.Default().Get("m")
	for i, ch := range chunks {
		// overlap is 0 here, so every chunk stays under the hard limit
		assert.LessOrEqual(t, tok.Count(ch.Text), 100, "chunk %d", i)
	}
}

func TestMarkdownOversizeParagraphSplitsBySentence(t *testing.T) {
	c := mdChunker(t, MarkdownOptions{SoftTarget: 20, HardLimit: 30})

	var sentences []string
	for i := 0; i < 12; i++ {
		sentences = append(sentences, words(fmt.Sprintf("s%d w", i), 6)+".")
	}
	text := strings.Join(sentences, " ")

	chunks, err := c.Chunk([]Page{{PageNo: 1, Text: text}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// sentence boundaries survive: every piece ends with a terminator
	for i, ch := range chunks {
		assert.True(t, strings.HasSuffix(strings.TrimSpace(ch.Text), "."), "chunk %d: %q", i, ch.Text)
	}
	// continuation pieces carry the marker and receive no overlap prefix
	for _, ch := range chunks[1:] {
		assert.Contains(t, ch.BlockTypes, "continuation")
	}
}

func TestMarkdownOversizeTableSplitKeepsHeader(t *testing.T) {
	c := mdChunker(t, MarkdownOptions{SoftTarget: 25, HardLimit: 40})

	var sb strings.Builder
	sb.WriteString("| name | value |\n| --- | --- |\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "| row%d | somevalue%d |\n", i, i)
	}

	chunks, err := c.Chunk([]Page{{PageNo: 1, Text: sb.String()}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Contains(t, ch.Text, "| name | value |", "chunk %d lost the header", i)
	}
}

func TestMarkdownOverlapPassPrependsTail(t *testing.T) {
	c := mdChunker(t, MarkdownOptions{SoftTarget: 30, HardLimit: 60, Overlap: 5, StartNewOnHeading: true})

	text := "# One\n\n" + words("aa w", 10) + "\n\n# Two\n\n" + words("bb w", 10)
	chunks, err := c.Chunk([]Page{{PageNo: 1, Text: text}})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	tok := tokenizer.Default().Get("m")
	first := tok.Tokenize(chunks[0].Text)
	tail := chunks[0].Text[first[len(first)-5].Start:first[len(first)-1].End]
	assert.True(t, strings.HasPrefix(chunks[1].Text, tail))
}

func TestMarkdownAssetMetadata(t *testing.T) {
	text := "intro paragraph\n\n<<<PLACEHOLDER|fig|abc123|desc=\"loss curve\">>>\n\nclosing paragraph"

	c := mdChunker(t, MarkdownOptions{MaterializeAssets: false})
	chunks, err := c.Chunk([]Page{{PageNo: 1, Text: text}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	require.Len(t, chunks[0].Assets, 1)
	assert.Equal(t, "fig", chunks[0].Assets[0].Kind)
	assert.Equal(t, "abc123", chunks[0].Assets[0].UID)
	assert.Equal(t, "loss curve", chunks[0].Assets[0].Desc)
	assert.NotContains(t, chunks[0].Text, "PLACEHOLDER")
}

func TestMarkdownAssetMaterialized(t *testing.T) {
	text := "intro paragraph\n\n<<<PLACEHOLDER|fig|abc123|desc=\"loss curve\">>>"

	c := mdChunker(t, MarkdownOptions{MaterializeAssets: true})
	chunks, err := c.Chunk([]Page{{PageNo: 1, Text: text}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Contains(t, chunks[0].Text, "[fig abc123: loss curve]")
	require.Len(t, chunks[0].Assets, 1)
}

func TestMarkdownCodeBlockKeptWhole(t *testing.T) {
	code := "```go\nfunc main() {\n\tprintln(42)\n}\n```"
	text := "before text\n\n" + code + "\n\nafter text"

	c := mdChunker(t, MarkdownOptions{SoftTarget: 200, HardLimit: 300})
	chunks, err := c.Chunk([]Page{{PageNo: 1, Text: text}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, code)
	assert.Contains(t, chunks[0].BlockTypes, "code")
}

func TestParseBlocksKinds(t *testing.T) {
	text := "# H\n\npara text\n\n```\ncode\n```\n\n$$\nx^2\n$$\n\n| a | b |\n| 1 | 2 |"
	blocks := parseBlocks(text)

	var kinds []blockKind
	for _, b := range blocks {
		kinds = append(kinds, b.kind)
	}
	assert.Equal(t, []blockKind{blockHeading, blockPara, blockCode, blockMath, blockTable}, kinds)
}

func TestSplitSentencesKeepsTerminators(t *testing.T) {
	got := splitSentences("First one. Second one! 第三句。 no end")
	require.Len(t, got, 4)
	assert.Equal(t, "First one.", got[0])
	assert.Equal(t, "Second one!", got[1])
	assert.Equal(t, "第三句。", got[2])
	assert.Equal(t, "no end", got[3])
}
