package chunk

import (
	"regexp"
	"strings"

	"github.com/kart-io/ragx/internal/model"
)

type blockKind string

const (
	blockHeading blockKind = "heading"
	blockPara    blockKind = "para"
	blockCode    blockKind = "code"
	blockMath    blockKind = "math"
	blockTable   blockKind = "table"
	blockAsset   blockKind = "asset"
)

// block is one unit of the parsed markdown stream.
type block struct {
	kind  blockKind
	text  string
	level int // heading level, 1-6
	asset *model.Asset
}

var (
	headingRe     = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	placeholderRe = regexp.MustCompile(`^<<<PLACEHOLDER\|(fig|tbl)\|([^|]+)\|desc="(.*)">>>$`)
)

// parseBlocks splits markdown text into a flat block stream. Fenced code
// and display math are kept whole; consecutive table lines form one table
// block; everything else groups into paragraphs on blank lines.
func parseBlocks(text string) []block {
	lines := strings.Split(text, "\n")

	var (
		blocks []block
		para   []string
		table  []string
		fence  []string
		inCode bool
		inMath bool
	)

	flushPara := func() {
		if len(para) > 0 {
			blocks = append(blocks, block{kind: blockPara, text: strings.Join(para, "\n")})
			para = nil
		}
	}
	flushTable := func() {
		if len(table) > 0 {
			blocks = append(blocks, block{kind: blockTable, text: strings.Join(table, "\n")})
			table = nil
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		switch {
		case inCode:
			fence = append(fence, line)
			if strings.HasPrefix(trimmed, "```") {
				blocks = append(blocks, block{kind: blockCode, text: strings.Join(fence, "\n")})
				fence = nil
				inCode = false
			}
			continue
		case inMath:
			fence = append(fence, line)
			if trimmed == "$$" {
				blocks = append(blocks, block{kind: blockMath, text: strings.Join(fence, "\n")})
				fence = nil
				inMath = false
			}
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "```"):
			flushPara()
			flushTable()
			fence = append(fence, line)
			inCode = true

		case trimmed == "$$":
			flushPara()
			flushTable()
			fence = append(fence, line)
			inMath = true

		case headingRe.MatchString(trimmed):
			flushPara()
			flushTable()
			m := headingRe.FindStringSubmatch(trimmed)
			blocks = append(blocks, block{kind: blockHeading, text: trimmed, level: len(m[1])})

		case placeholderRe.MatchString(trimmed):
			flushPara()
			flushTable()
			m := placeholderRe.FindStringSubmatch(trimmed)
			blocks = append(blocks, block{
				kind: blockAsset,
				text: trimmed,
				asset: &model.Asset{
					Kind: m[1],
					UID:  m[2],
					Desc: m[3],
				},
			})

		case strings.HasPrefix(trimmed, "|"):
			flushPara()
			table = append(table, line)

		case trimmed == "":
			flushPara()
			flushTable()

		default:
			flushTable()
			para = append(para, line)
		}
	}

	// unterminated fences fall back to their raw lines
	if len(fence) > 0 {
		kind := blockCode
		if inMath {
			kind = blockMath
		}
		blocks = append(blocks, block{kind: kind, text: strings.Join(fence, "\n")})
	}
	flushPara()
	flushTable()

	return blocks
}

var sentenceEndRe = regexp.MustCompile(`([.!?。！？；;])\s*`)

// splitSentences splits a paragraph into sentences, keeping terminators.
func splitSentences(text string) []string {
	idxs := sentenceEndRe.FindAllStringIndex(text, -1)
	if len(idxs) == 0 {
		return []string{text}
	}
	var out []string
	prev := 0
	for _, idx := range idxs {
		s := strings.TrimSpace(text[prev:idx[1]])
		if s != "" {
			out = append(out, s)
		}
		prev = idx[1]
	}
	if rest := strings.TrimSpace(text[prev:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

var slugRe = regexp.MustCompile(`[^a-z0-9\p{Han}]+`)

// slugify renders a heading title as an anchor segment.
func slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
