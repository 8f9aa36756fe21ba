package chunk

import (
	"fmt"
	"strings"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/tokenizer"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// MarkdownOptions configures the markdown-aware chunker.
type MarkdownOptions struct {
	SoftTarget        int
	HardLimit         int
	Overlap           int
	StartNewOnHeading bool
	MaterializeAssets bool
	ModelName         string
}

// MarkdownOptionsFromParams reads chunker options from an effective
// strategy parameter map.
func MarkdownOptionsFromParams(p model.ParamMap) MarkdownOptions {
	return MarkdownOptions{
		SoftTarget:        intParam(p, "soft_target", 350),
		HardLimit:         intParam(p, "hard_limit", 520),
		Overlap:           intParam(p, "overlap", 60),
		StartNewOnHeading: boolParam(p, "start_new_on_heading", true),
		MaterializeAssets: boolParam(p, "materialize_assets", false),
		ModelName:         stringParam(p, "model_name", "multilingual-e5-large"),
	}
}

// MarkdownChunker accumulates markdown blocks greedily up to the soft
// token target, splits oversize blocks by kind, and applies a global
// overlap pass across chunk boundaries.
type MarkdownChunker struct {
	opts MarkdownOptions
	tok  tokenizer.Tokenizer
}

// NewMarkdown creates a markdown-aware chunker. The invariant
// overlap < soft_target < hard_limit must hold.
func NewMarkdown(opts MarkdownOptions) (*MarkdownChunker, error) {
	if opts.Overlap < 0 || opts.Overlap >= opts.SoftTarget || opts.SoftTarget >= opts.HardLimit {
		return nil, errors.ErrValidation.WithMessagef(
			"require overlap < soft_target < hard_limit, got %d/%d/%d",
			opts.Overlap, opts.SoftTarget, opts.HardLimit)
	}
	return &MarkdownChunker{
		opts: opts,
		tok:  tokenizer.Default().Get(opts.ModelName),
	}, nil
}

// pending is a chunk being accumulated.
type pending struct {
	parts        []string
	tokens       int
	blockTypes   []string
	assets       []model.Asset
	continuation bool // produced by intra-block splitting; skips overlap
}

// Chunk parses each page into a block stream and emits chunks.
func (c *MarkdownChunker) Chunk(pages []Page) ([]model.Chunk, error) {
	var (
		out     []model.Chunk
		chunkID int
		// heading titles by level, for section paths
		sections [6]string
	)

	for _, page := range pages {
		blocks := parseBlocks(page.Text)
		cur := &pending{}

		flush := func() {
			if len(cur.parts) == 0 {
				return
			}
			chunkID++
			out = append(out, c.emit(cur, page.PageNo, chunkID, sections))
			cur = &pending{}
		}

		for _, b := range blocks {
			if b.kind == blockHeading {
				if c.opts.StartNewOnHeading {
					flush()
				}
				title := strings.TrimLeft(b.text, "# ")
				sections[b.level-1] = title
				for i := b.level; i < len(sections); i++ {
					sections[i] = ""
				}
			}

			text, asset := c.renderBlock(b)
			if text == "" && asset == nil {
				continue
			}
			n := c.tok.Count(text)

			if n > c.opts.HardLimit {
				flush()
				pieces := c.splitBlock(b, text)
				for i, piece := range pieces {
					chunkID++
					p := &pending{
						parts:        []string{piece},
						blockTypes:   []string{string(b.kind)},
						continuation: i > 0,
					}
					if asset != nil {
						p.assets = append(p.assets, *asset)
					}
					out = append(out, c.emit(p, page.PageNo, chunkID, sections))
				}
				continue
			}

			if cur.tokens > 0 && cur.tokens+n > c.opts.SoftTarget {
				flush()
			}
			if text != "" {
				cur.parts = append(cur.parts, text)
				cur.tokens += n
				cur.blockTypes = appendUnique(cur.blockTypes, string(b.kind))
			}
			if asset != nil {
				cur.assets = append(cur.assets, *asset)
			}
		}
		flush()
	}

	c.applyOverlap(out)
	return out, nil
}

// renderBlock converts a block to chunk text. Asset placeholders become
// inline captions when materialization is on, metadata otherwise.
func (c *MarkdownChunker) renderBlock(b block) (string, *model.Asset) {
	if b.kind != blockAsset {
		return b.text, nil
	}
	if c.opts.MaterializeAssets {
		caption := fmt.Sprintf("[%s %s: %s]", b.asset.Kind, b.asset.UID, b.asset.Desc)
		return caption, b.asset
	}
	return "", b.asset
}

// splitBlock breaks a block that alone exceeds the hard limit.
func (c *MarkdownChunker) splitBlock(b block, text string) []string {
	switch b.kind {
	case blockPara:
		return c.splitParagraph(text)
	case blockTable:
		return c.splitTable(text)
	default:
		return c.splitByTokens(text, c.opts.SoftTarget)
	}
}

// splitParagraph groups sentences up to the soft target, falling back to a
// token window for any single sentence past the hard limit.
func (c *MarkdownChunker) splitParagraph(text string) []string {
	var (
		out []string
		cur []string
		n   int
	)
	for _, s := range splitSentences(text) {
		sn := c.tok.Count(s)
		if sn > c.opts.HardLimit {
			if len(cur) > 0 {
				out = append(out, strings.Join(cur, " "))
				cur, n = nil, 0
			}
			out = append(out, c.splitByTokens(s, c.opts.SoftTarget)...)
			continue
		}
		if n > 0 && n+sn > c.opts.SoftTarget {
			out = append(out, strings.Join(cur, " "))
			cur, n = nil, 0
		}
		cur = append(cur, s)
		n += sn
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

// splitTable slices a table by row, repeating the header in every piece.
func (c *MarkdownChunker) splitTable(text string) []string {
	lines := strings.Split(text, "\n")
	headerEnd := 1
	if len(lines) > 1 && strings.Contains(lines[1], "---") {
		headerEnd = 2
	}
	if headerEnd >= len(lines) {
		return []string{text}
	}
	header := strings.Join(lines[:headerEnd], "\n")
	headerTokens := c.tok.Count(header)

	var (
		out  []string
		rows []string
		n    int
	)
	for _, row := range lines[headerEnd:] {
		rn := c.tok.Count(row)
		if n > 0 && headerTokens+n+rn > c.opts.SoftTarget {
			out = append(out, header+"\n"+strings.Join(rows, "\n"))
			rows, n = nil, 0
		}
		rows = append(rows, row)
		n += rn
	}
	if len(rows) > 0 {
		out = append(out, header+"\n"+strings.Join(rows, "\n"))
	}
	return out
}

// splitByTokens slices text into windows of at most limit tokens.
func (c *MarkdownChunker) splitByTokens(text string, limit int) []string {
	tokens := c.tok.Tokenize(text)
	if len(tokens) <= limit {
		return []string{text}
	}
	var out []string
	for start := 0; start < len(tokens); start += limit {
		end := start + limit
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, text[tokens[start].Start:tokens[end-1].End])
	}
	return out
}

// emit materializes a pending chunk.
func (c *MarkdownChunker) emit(p *pending, pageNo, chunkID int, sections [6]string) model.Chunk {
	var path []string
	var anchors []string
	for _, title := range sections {
		if title != "" {
			path = append(path, title)
			anchors = append(anchors, slugify(title))
		}
	}
	ch := model.Chunk{
		Page:        pageNo,
		ChunkID:     chunkID,
		Text:        strings.Join(p.parts, "\n\n"),
		SectionPath: path,
		BlockTypes:  p.blockTypes,
		Assets:      p.assets,
	}
	if len(anchors) > 0 {
		ch.Anchor = strings.Join(anchors, "/")
	}
	if p.continuation {
		ch.BlockTypes = appendUnique(ch.BlockTypes, "continuation")
	}
	return ch
}

// applyOverlap prepends the last Overlap tokens of each chunk to its
// successor, skipping successors produced by intra-block splitting.
func (c *MarkdownChunker) applyOverlap(chunks []model.Chunk) {
	if c.opts.Overlap == 0 {
		return
	}
	for i := len(chunks) - 1; i > 0; i-- {
		if isContinuation(&chunks[i]) {
			continue
		}
		prevText := chunks[i-1].Text
		tokens := c.tok.Tokenize(prevText)
		if len(tokens) == 0 {
			continue
		}
		n := c.opts.Overlap
		if n > len(tokens) {
			n = len(tokens)
		}
		tail := tokens[len(tokens)-n:]
		chunks[i].Text = prevText[tail[0].Start:tail[len(tail)-1].End] + "\n" + chunks[i].Text
	}
}

func isContinuation(c *model.Chunk) bool {
	for _, t := range c.BlockTypes {
		if t == "continuation" {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}
